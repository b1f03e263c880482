package main

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ypwhs/cp02-monitor/internal/config"
	"github.com/ypwhs/cp02-monitor/internal/discovery"
	"github.com/ypwhs/cp02-monitor/internal/logging"
	"github.com/ypwhs/cp02-monitor/internal/telemetry"
	"github.com/ypwhs/cp02-monitor/internal/ui"
)

// Command flags
var (
	configPath    string
	deviceIP      string
	networkPrefix string
	noMDNS        bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Settings file path (default: platform config dir)")
	rootCmd.PersistentFlags().StringVar(&deviceIP, "device", "", "Device IP address (skips discovery)")
	rootCmd.PersistentFlags().StringVar(&networkPrefix, "prefix", "", "Network prefix to scan, e.g. 192.168.1")
	rootCmd.PersistentFlags().BoolVar(&noMDNS, "no-mdns", false, "Skip the mDNS candidate harvest before scanning")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
}

// openStore loads the settings file, degrading to defaults when it is
// unreadable. Persistence problems only cost the scan fast path and the
// saved preferences, so they are reported and the run continues.
func openStore() *config.Store {
	path := configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			logging.Warn("No usable settings location, using defaults", zap.Error(err))
			path = ""
		}
	}
	store, err := config.Open(path)
	if err != nil {
		logging.Warn("Settings unreadable, using defaults",
			zap.String("path", path),
			zap.Error(err),
		)
	}
	return store
}

// newScanner wires the prober, address book and optional mDNS hint source.
func newScanner(store *config.Store) *discovery.Scanner {
	prefs := store.Preferences()
	scanner := discovery.NewScanner(discovery.NewProber(), store, prefs.ScanWorkers)
	if !noMDNS {
		mdns := discovery.NewMDNSSource()
		scanner.Hints = mdns.Candidates
	}
	return scanner
}

// scanPrefix picks the network prefix: flag, then saved preference, then
// the first three octets of this host's own address.
func scanPrefix(store *config.Store) (string, error) {
	if networkPrefix != "" {
		return networkPrefix, nil
	}
	if p := store.Preferences().NetworkPrefix; p != "" {
		return p, nil
	}
	return localPrefix()
}

// localPrefix derives a /24 prefix from the first non-loopback IPv4
// interface address.
func localPrefix() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", fmt.Errorf("failed to list interface addresses: %w", err)
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		ip4 := ipNet.IP.To4()
		if ip4 == nil {
			continue
		}
		return fmt.Sprintf("%d.%d.%d", ip4[0], ip4[1], ip4[2]), nil
	}
	return "", fmt.Errorf("no IPv4 interface address found; pass --prefix")
}

// metricsURL builds the metrics endpoint URL for a confirmed address.
func metricsURL(addr string) string {
	return fmt.Sprintf("http://%s%s", addr, discovery.DefaultMetricsPath)
}

// targetURL resolves the initial fetch target: explicit --device, then the
// address book, then the configured fallback URL.
func targetURL(store *config.Store) string {
	if deviceIP != "" {
		return metricsURL(deviceIP)
	}
	if addr, ok := store.LastAddress(); ok {
		return metricsURL(addr)
	}
	return store.Preferences().FallbackURL
}

// scanCmd locates the charging hub on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the network for a CP-02 charging hub",
	Long: `Scan the local network for a CP-02 charging hub.

The last confirmed address is probed first; if it still answers, the scan
stops there. Otherwise candidates from a short mDNS browse are probed,
followed by a sharded sweep of the whole /24 range. The confirmed address
is saved for future runs.`,
	Example: `  # Scan using the host's own /24
  cp02-monitor scan

  # Scan a specific prefix
  cp02-monitor scan --prefix 192.168.50

  # Skip the mDNS harvest
  cp02-monitor scan --no-mdns`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	store := openStore()

	prefix, err := scanPrefix(store)
	if err != nil {
		return err
	}

	fmt.Printf("Scanning %s.0/24 for a CP-02 charging hub...\n", prefix)

	// The callback fires on the scanner's shard goroutines.
	var probed atomic.Int64
	addr, err := newScanner(store).Scan(prefix, false, func(addr string, found bool) {
		probed.Add(1)
	})
	if errors.Is(err, discovery.ErrNoDeviceFound) {
		fmt.Printf("No device found (%d addresses probed).\n", probed.Load())
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Ensure the charging hub is powered and on this network")
		fmt.Println("  - Check that this host is on the same /24 as the hub")
		fmt.Println("  - Try --prefix if the hub lives on a different subnet")
		return nil
	}
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	fmt.Printf("Found device at %s (%d addresses probed)\n", addr, probed.Load())
	fmt.Printf("Metrics endpoint: %s\n", metricsURL(addr))
	fmt.Println("\nUse 'cp02-monitor watch' to start the live display")
	return nil
}

// fetchCmd performs a single poll and prints the result
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch one metrics sample and print it",
	Long: `Fetch a single metrics sample from the charging hub and print the
parsed per-port state as plain text. Useful for scripting and for checking
a device without starting the live display.`,
	Example: `  # Fetch from the remembered device
  cp02-monitor fetch

  # Fetch from an explicit address
  cp02-monitor fetch --device 192.168.1.34`,
	RunE: runFetch,
}

func runFetch(cmd *cobra.Command, args []string) error {
	store := openStore()
	prefs := store.Preferences()

	model := telemetry.NewModel()
	poller := telemetry.NewPoller(model, targetURL(store), prefs.RefreshInterval(), prefs.ErrorThreshold)
	poller.SetLinkUp(true)

	switch poller.Poll() {
	case telemetry.OutcomeSuccess:
	case telemetry.OutcomeHTTPError:
		return fmt.Errorf("device at %s answered with a non-200 status", poller.TargetURL())
	case telemetry.OutcomeTransportError:
		return fmt.Errorf("device at %s is unreachable", poller.TargetURL())
	default:
		return fmt.Errorf("fetch was suppressed; try again")
	}

	snap := model.Snapshot()
	fmt.Printf("Device: %s\n\n", poller.TargetURL())
	for _, port := range snap.Ports {
		fmt.Printf("  %-3s %7.2fW  %5dmV %5dmA  state=%d protocol=%d\n",
			port.Name, port.PowerW, port.VoltageMV, port.CurrentMA, port.State, port.Protocol)
	}
	fmt.Printf("\n  Total: %.2fW\n", snap.TotalPowerW)
	return nil
}

// watchCmd runs the live display
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live per-port power display",
	Long: `Start the live telemetry display.

The display begins immediately against the remembered (or fallback) address
while a scan validates the target in the background; if the scan confirms a
different address, the poller retargets without restarting.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	store := openStore()
	prefs := store.Preferences()

	model := telemetry.NewModel()
	poller := telemetry.NewPoller(model, targetURL(store), prefs.RefreshInterval(), prefs.ErrorThreshold)
	// The CLI host's link is up by the time we run; embedded builds feed
	// their WiFi association events here instead.
	poller.SetLinkUp(true)

	// Background discovery: validate the cached address or sweep for a new
	// one, retargeting the poller on confirmation. An explicit --device
	// pins the target.
	if deviceIP == "" {
		go func() {
			prefix, err := scanPrefix(store)
			if err != nil {
				logging.Warn("Cannot determine scan prefix", zap.Error(err))
				return
			}
			addr, err := newScanner(store).Scan(prefix, false, nil)
			if err != nil {
				logging.Warn("Background scan found no device", zap.Error(err))
				return
			}
			poller.SetTargetURL(metricsURL(addr))
		}()
	}

	program := tea.NewProgram(
		ui.NewWatch(model, poller, prefs.RefreshInterval()),
		tea.WithAltScreen(),
	)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("display error: %w", err)
	}
	return nil
}

// configCmd manages the settings file
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := openStore()
		prefs := store.Preferences()

		fmt.Printf("Settings file: %s\n\n", store.Path())
		if addr, ok := store.LastAddress(); ok {
			fmt.Printf("  device address:   %s\n", addr)
		} else {
			fmt.Printf("  device address:   (none, will scan)\n")
		}
		fmt.Printf("  refresh interval: %s\n", prefs.RefreshInterval())
		fmt.Printf("  fallback URL:     %s\n", prefs.FallbackURL)
		if prefs.NetworkPrefix != "" {
			fmt.Printf("  network prefix:   %s\n", prefs.NetworkPrefix)
		} else {
			fmt.Printf("  network prefix:   (auto-detect)\n")
		}
		fmt.Printf("  error threshold:  %d\n", prefs.ErrorThreshold)
		fmt.Printf("  scan workers:     %d\n", prefs.ScanWorkers)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Long: `Change one setting and save the file.

Keys: refresh-interval-ms, fallback-url, network-prefix, error-threshold,
scan-workers.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		var apply func(*config.Preferences)
		switch key {
		case "refresh-interval-ms":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("%s needs an integer value: %w", key, err)
			}
			apply = func(p *config.Preferences) { p.RefreshIntervalMS = n }
		case "fallback-url":
			apply = func(p *config.Preferences) { p.FallbackURL = value }
		case "network-prefix":
			apply = func(p *config.Preferences) { p.NetworkPrefix = strings.TrimSuffix(value, ".") }
		case "error-threshold":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("%s needs an integer value: %w", key, err)
			}
			apply = func(p *config.Preferences) { p.ErrorThreshold = n }
		case "scan-workers":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("%s needs an integer value: %w", key, err)
			}
			apply = func(p *config.Preferences) { p.ScanWorkers = n }
		default:
			return fmt.Errorf("unknown setting %q", key)
		}

		store := openStore()
		if err := store.UpdatePreferences(apply); err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}

		fmt.Printf("Saved %s = %s\n", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
