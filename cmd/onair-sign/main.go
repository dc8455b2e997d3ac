// Command onair-sign runs the ON AIR sign controller. One process life is
// exactly one provisioning mode: the daemon boots, decides between Portal
// and Connected, runs that mode's services until a restart request re-execs
// the binary, and the next life re-runs the decision on whatever the restart
// changed (saved credentials, a wiped store, a replaced binary).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mveplus/onair-led-sign-firmware/internal/actuator"
	"github.com/mveplus/onair-led-sign-firmware/internal/announce"
	"github.com/mveplus/onair-led-sign-firmware/internal/config"
	"github.com/mveplus/onair-led-sign-firmware/internal/device"
	"github.com/mveplus/onair-led-sign-firmware/internal/discovery"
	"github.com/mveplus/onair-led-sign-firmware/internal/dnshijack"
	"github.com/mveplus/onair-led-sign-firmware/internal/gpio"
	"github.com/mveplus/onair-led-sign-firmware/internal/ident"
	"github.com/mveplus/onair-led-sign-firmware/internal/ota"
	"github.com/mveplus/onair-led-sign-firmware/internal/provision"
	"github.com/mveplus/onair-led-sign-firmware/internal/store"
	"github.com/mveplus/onair-led-sign-firmware/internal/web"
	"github.com/mveplus/onair-led-sign-firmware/internal/wifi"
)

// version is stamped at build time: -ldflags "-X main.version=v1.2.3".
var version = "dev"

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("onair-sign failed")
	}
}

func run() error {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	dataPath := flag.String("data", "", "settings database path, or \"memory\" for a throwaway store")
	httpAddr := flag.String("http", "", "control plane listen address")
	iface := flag.String("iface", "", "wi-fi interface name")
	gpioChip := flag.String("gpiochip", "", "GPIO character device")
	broker := flag.String("broker", "", "MQTT broker URL for announcements")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn or error")
	logJSON := flag.Bool("log-json", false, "force JSON log output")
	radioKind := flag.String("radio", "nmcli", "radio driver: nmcli, or fake to run off-device")
	printState := flag.Bool("print-state", false, "print identity and stored settings as JSON, then exit")
	showVersion := flag.Bool("version", false, "print the version, then exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return nil
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return fmt.Errorf("load config %s: %w", *configPath, err)
		}
		cfg = loaded
	}
	overrideString(&cfg.Database.Path, *dataPath)
	overrideString(&cfg.HTTP.Addr, *httpAddr)
	overrideString(&cfg.Wifi.Interface, *iface)
	overrideString(&cfg.GPIO.Chip, *gpioChip)
	overrideString(&cfg.Broker, *broker)
	overrideString(&cfg.Log.Level, *logLevel)
	if *logJSON {
		cfg.Log.JSON = true
	}

	setupLogging(cfg.Log.Level, cfg.Log.JSON)

	gateway := net.ParseIP(cfg.Wifi.Gateway)
	if gateway == nil {
		return fmt.Errorf("bad portal gateway address %q", cfg.Wifi.Gateway)
	}

	st, err := openStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open settings store: %w", err)
	}
	defer st.Close()

	devCfg, err := device.LoadConfig(st)
	if err != nil {
		return fmt.Errorf("load stored settings: %w", err)
	}

	deviceID, err := ident.DeviceID(cfg.Wifi.Interface)
	if err != nil {
		return fmt.Errorf("derive device id: %w", err)
	}

	if *printState {
		return printStoredState(os.Stdout, deviceID, devCfg)
	}

	log.Info().Str("version", version).Str("id", deviceID).Msg("Starting onair-sign")

	radio, pwm, button, err := openDrivers(cfg, *radioKind)
	if err != nil {
		return err
	}
	defer radio.Close()
	defer button.Close()

	driver := actuator.New(actuator.Config{
		PWM:        pwm,
		Pin:        provision.EffectivePin(devCfg),
		ActiveHigh: devCfg.LEDActiveHigh,
	})
	defer driver.Close()

	host := hostnameFor(deviceID, devCfg)
	var announcer announce.Publisher = announce.Nop{}
	if cfg.Broker != "" {
		pub, err := announce.NewRealPublisher(cfg.Broker, host)
		if err != nil {
			log.Warn().Err(err).Str("broker", cfg.Broker).Msg("Announcing disabled, broker unusable")
		} else {
			announcer = pub
			defer pub.Close()
		}
	}

	disco := &discovery.MDNS{}
	defer disco.Close()

	state := device.NewState(time.Now(), devCfg, version)
	scans := wifi.NewCoordinator(radio, wifi.DefaultScanMaxWait)
	mgr := provision.NewManager(provision.Deps{
		State:     state,
		Store:     st,
		Radio:     radio,
		Scans:     scans,
		Driver:    driver,
		Button:    button,
		DNS:       &dnshijack.Responder{},
		Discovery: disco,
		Announcer: announcer,
		Restarter: provision.ExecRestarter{},
		DeviceID:  deviceID,
		Gateway:   gateway,
		HTTPPort:  portOf(cfg.HTTP.Addr),
		Version:   version,
		Diag:      os.Stdout,
	})

	if err := mgr.Boot(context.Background()); err != nil {
		return fmt.Errorf("boot: %w", err)
	}

	srv := web.New(cfg.HTTP.Addr, web.Deps{
		State:    state,
		Manager:  mgr,
		Scans:    scans,
		Updater:  ota.NewFileUpdater(""),
		DeviceID: deviceID,
	})
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Str("addr", cfg.HTTP.Addr).Msg("Control plane server failed")
		}
	}()

	announceStartup(announcer, state)

	ticker := time.NewTicker(cfg.Tick.Duration())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	loopErr := runLoop(mgr, announcer, time.Now, ticker.C, sigCh)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Control plane shutdown failed")
	}
	mgr.StopPortalServices()
	return loopErr
}

// runLoop is the control loop: ticks drive the provisioning manager, the
// first SIGINT or SIGTERM announces the shutdown and returns. Restart
// requests never come back through here; the manager's restarter replaces
// the process out from under the loop.
func runLoop(mgr *provision.Manager, announcer announce.Publisher, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			log.Info().Str("signal", s.String()).Msg("Shutting down")
			name := "UNKNOWN"
			if s == syscall.SIGINT {
				name = "SIGINT"
			} else if s == syscall.SIGTERM {
				name = "SIGTERM"
			}
			ev := announce.SystemEvent{
				Timestamp: now(),
				Event:     announce.EventShutdown,
				Reason:    name,
				Retained:  true,
			}
			if err := announcer.PublishSystem(ev); err != nil {
				log.Warn().Err(err).Msg("Shutdown announcement failed")
			}
			return nil

		case <-tick:
			mgr.Tick(now())
		}
	}
}

// announceStartup publishes the retained STARTUP event once the boot
// decision has landed in a mode. A boot that is already restarting (a
// power-on factory reset) never reaches a mode and announces nothing.
func announceStartup(announcer announce.Publisher, state *device.State) {
	snap := state.Snapshot()

	var mode string
	switch snap.Mode {
	case device.ModeConnected:
		mode = "sta"
	case device.ModePortal:
		mode = "portal"
	default:
		return
	}

	ev := announce.SystemEvent{
		Timestamp: snap.Now,
		Event:     announce.EventStartup,
		Mode:      mode,
		Version:   snap.Version,
		IP:        snap.Network.IP,
		Retained:  true,
	}
	if err := announcer.PublishSystem(ev); err != nil {
		log.Warn().Err(err).Msg("Startup announcement failed")
	}
}

func setupLogging(level string, useJSON bool) {
	zerolog.TimeFieldFormat = time.RFC3339

	if useJSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// openStore picks the settings backend: SQLite on disk, or the in-process
// store for development runs that should leave nothing behind.
func openStore(path string) (store.Store, error) {
	if path == "memory" {
		return store.NewMemory(), nil
	}
	return store.OpenSQLite(path)
}

// openDrivers opens the radio and the GPIO surfaces. The fake radio is the
// escape hatch for running off the device; with it, hardware that fails to
// open degrades to an inert fake instead of aborting the boot.
func openDrivers(cfg *config.Config, radioKind string) (wifi.Radio, gpio.PWM, gpio.Button, error) {
	var radio wifi.Radio
	switch radioKind {
	case "nmcli":
		radio = wifi.NewNMCLIRadio(cfg.Wifi.Interface)
	case "fake":
		radio = wifi.NewFakeRadio()
	default:
		return nil, nil, nil, fmt.Errorf("unknown radio driver %q", radioKind)
	}
	offDevice := radioKind == "fake"

	var pwm gpio.PWM
	if realPWM, err := gpio.NewRealPWM(); err == nil {
		pwm = realPWM
	} else {
		if !offDevice {
			return nil, nil, nil, fmt.Errorf("init pwm: %w", err)
		}
		log.Warn().Err(err).Msg("PWM unavailable, sign output is simulated")
		pwm = gpio.NewFakePWM(1024)
	}

	var button gpio.Button
	if realButton, err := gpio.NewRealButton(cfg.GPIO.Chip, cfg.GPIO.ButtonPin); err == nil {
		button = realButton
	} else {
		if !offDevice {
			return nil, nil, nil, fmt.Errorf("open reset button: %w", err)
		}
		log.Warn().Err(err).Msg("Reset button unavailable, running without the reset gesture")
		button = gpio.NewFakeButton(nil)
	}

	return radio, pwm, button, nil
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// hostnameFor is the device's announce and discovery name: the configured
// hostname, or the identity-derived default.
func hostnameFor(deviceID string, cfg device.Config) string {
	if cfg.Hostname != "" {
		return cfg.Hostname
	}
	return ident.DefaultHostname(deviceID)
}

// portOf extracts the numeric port from a listen address for the discovery
// record, defaulting to 80 when the address carries none.
func portOf(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 80
	}
	p, err := strconv.Atoi(portStr)
	if err != nil || p <= 0 {
		return 80
	}
	return p
}

// printStoredState dumps the device identity and the persisted settings
// without starting the daemon. Secrets are reported as set or not, the same
// policy the config endpoint applies.
func printStoredState(w io.Writer, deviceID string, cfg device.Config) error {
	doc := struct {
		ID       string `json:"id"`
		APSSID   string `json:"ap_ssid"`
		Hostname string `json:"host"`
		Version  string `json:"version"`
		SSID     string `json:"ssid"`
		PassSet  bool   `json:"pass_set"`
		Pin      int    `json:"pin"`
		Mode     string `json:"mode"`
		PeriodMs int    `json:"period_ms"`
		MinPct   int    `json:"min_pct"`
		MaxPct   int    `json:"max_pct"`
		TokenSet bool   `json:"token_set"`
	}{
		ID:       deviceID,
		APSSID:   ident.APSSID(deviceID),
		Hostname: hostnameFor(deviceID, cfg),
		Version:  version,
		SSID:     cfg.SSID,
		PassSet:  cfg.WifiPassword != "",
		Pin:      provision.EffectivePin(cfg),
		Mode:     cfg.ActuatorMode.String(),
		PeriodMs: cfg.BreathPeriod,
		MinPct:   cfg.BreathMinPct,
		MaxPct:   cfg.BreathMaxPct,
		TokenSet: cfg.APIToken != "",
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
