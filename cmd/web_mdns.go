package cmd

import (
	"fmt"
	"net"
	"os"
	"sort"
	"strings"

	"github.com/hashicorp/mdns"
	"github.com/rubiojr/ordframe/pkg/config"
	"github.com/rubiojr/ordframe/pkg/version"
)

const mdnsService = "_ordframe._tcp"

// startMDNSAdvertiser announces the web server on the LAN so a frame can be
// found without knowing its IP. The returned func stops the announcement.
func startMDNSAdvertiser(cfg *config.Config) (func(), error) {
	instance := mdnsInstance(cfg.MDNS.Instance)
	meta := []string{
		"name=ordframe",
		"version=" + version.Version,
		"path=/frame",
	}

	service, err := mdns.NewMDNSService(instance, mdnsService, "", "", cfg.Server.Port, advertiseIPs(), meta)
	if err != nil {
		return nil, fmt.Errorf("creating mDNS service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("starting mDNS server: %w", err)
	}
	webLogger.Infof("Advertising %s as %q on port %d", mdnsService, instance, cfg.Server.Port)

	return func() {
		if err := server.Shutdown(); err != nil {
			webLogger.Warnf("Failed to stop mDNS server: %v", err)
		}
	}, nil
}

// mdnsInstance falls back to "ordframe-<hostname>" when no instance name is
// configured.
func mdnsInstance(configured string) string {
	if name := strings.TrimSpace(configured); name != "" {
		return name
	}
	host, _ := os.Hostname()
	if host = strings.TrimSpace(host); host == "" {
		return "ordframe"
	}
	return "ordframe-" + host
}

func advertiseIPs() []net.IP {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}
	return filterAdvertiseIPs(addrs)
}

// filterAdvertiseIPs keeps routable unicast addresses, IPv4 first. A nil
// result lets mdns resolve the hostname itself.
func filterAdvertiseIPs(addrs []net.Addr) []net.IP {
	seen := make(map[string]bool)
	var out []net.IP
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet == nil || ipNet.IP == nil {
			continue
		}
		ip := ipNet.IP
		if ip.IsLoopback() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
			continue
		}
		ip = ip.To16()
		if ip == nil || seen[ip.String()] {
			continue
		}
		seen[ip.String()] = true
		out = append(out, ip)
	}
	sort.Slice(out, func(i, j int) bool {
		v4i, v4j := out[i].To4() != nil, out[j].To4() != nil
		if v4i != v4j {
			return v4i
		}
		return out[i].String() < out[j].String()
	})
	return out
}
