package commands

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/viper"

	"github.com/nfcgo/ncicore/internal/audit"
	"github.com/nfcgo/ncicore/internal/logger"
	"github.com/nfcgo/ncicore/internal/metrics"
	"github.com/nfcgo/ncicore/internal/tracing"
	"github.com/nfcgo/ncicore/pkg/nci"
	"github.com/nfcgo/ncicore/pkg/nci/hal/serialhal"
)

// bootstrapTimeout bounds each waitForState call in the CLI: long enough
// for the multi-command bootstrap chain at its default per-command timeout,
// short enough that a dead NFCC fails the command promptly.
const bootstrapTimeout = 15 * time.Second

// serialPortGlobs are the device patterns offered when --port is omitted.
var serialPortGlobs = []string{
	"/dev/ttyUSB*",
	"/dev/ttyACM*",
	"/dev/tty.usbserial*",
	"/dev/tty.usbmodem*",
}

// resolvePort returns the configured serial port, interactively prompting
// for one when none is configured and candidate devices exist.
func resolvePort() (string, error) {
	if port := viper.GetString("port"); port != "" {
		return port, nil
	}

	var candidates []string
	for _, pattern := range serialPortGlobs {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		candidates = append(candidates, matches...)
	}
	sort.Strings(candidates)

	if len(candidates) == 0 {
		return "", fmt.Errorf("no serial port configured and no candidate devices found; pass --port")
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	prompt := promptui.Select{
		Label: "Serial port of the NFCC",
		Items: candidates,
		Size:  10,
	}
	_, port, err := prompt.Run()
	if err != nil {
		if err == promptui.ErrInterrupt {
			return "", fmt.Errorf("aborted")
		}
		return "", fmt.Errorf("selecting serial port: %w", err)
	}
	return port, nil
}

// openCore opens the serial HAL, constructs a core over it, and attaches
// whatever observability the session has enabled. The returned closer
// detaches observers and releases the HAL.
func openCore() (*nci.Core, func(), error) {
	port, err := resolvePort()
	if err != nil {
		return nil, nil, err
	}

	if lc := logger.FromContext(session.Ctx); lc != nil {
		lc.Port = port
	}
	logger.InfoCtx(session.Ctx, "opening NFCC", "baud", viper.GetInt("baud"))

	halIO := serialhal.New(serialhal.Config{
		Name: port,
		Baud: viper.GetInt("baud"),
	})

	core, err := nci.New(halIO)
	if err != nil {
		return nil, nil, err
	}

	var detachers []func()
	if m := metrics.NewNCIMetrics(); m != nil {
		detachers = append(detachers, m.Attach(core))
	}
	if tracing.IsEnabled() {
		detachers = append(detachers, tracing.NewRecorder(session.Ctx).Attach(core))
	}
	if session.auditLog != nil {
		detachers = append(detachers, audit.NewObserver(session.auditLog, session.ID).Attach(core))
	}

	closer := func() {
		for _, detach := range detachers {
			detach()
		}
		if err := core.Close(); err != nil {
			logger.Warn("failed to close core", "error", err)
		}
	}
	return core, closer, nil
}

// waitForState blocks until core reaches target, stalls, or timeout
// elapses.
func waitForState(core *nci.Core, target nci.State, timeout time.Duration) error {
	reached := make(chan nci.State, 8)
	sub := core.SubscribeCurrentStateChanged(func(s nci.State) {
		select {
		case reached <- s:
		default:
		}
	})
	defer core.Unsubscribe(sub)

	// The subscription races the state change; check once after subscribing.
	if core.CurrentState() == target {
		return nil
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case s := <-reached:
			switch s {
			case target:
				return nil
			case nci.StateError:
				if err := core.Err(); err != nil {
					return err
				}
				return fmt.Errorf("controller stalled")
			case nci.StateStop:
				return fmt.Errorf("controller stopped")
			}
		case <-deadline.C:
			return fmt.Errorf("timed out after %s waiting for %s (currently %s)", timeout, target, core.CurrentState())
		}
	}
}

// bootstrap restarts the core and waits for it to reach RFST_IDLE.
func bootstrap(core *nci.Core) error {
	if err := core.Restart(); err != nil {
		return err
	}
	if err := waitForState(core, nci.StateIdle, bootstrapTimeout); err != nil {
		return fmt.Errorf("bootstrapping controller: %w", err)
	}
	return nil
}
