package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iot-sensordata/stageload/internal/config"
	"github.com/iot-sensordata/stageload/internal/simulator"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Publish random sensor readings like a weather station",
	Long: `Connect to the MQTT broker with the station's client certificate and publish a
random environmental reading on every interval until interrupted.`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().String("broker", "", "Broker URL, e.g. ssl://<endpoint>:8883 (overrides simulator.broker)")
	simulateCmd.Flags().Duration("interval", 0, "Delay between readings (overrides simulator.interval)")
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(config.WithoutValidation())
	if err != nil {
		return err
	}
	sim := cfg.Simulator

	broker, err := cmd.Flags().GetString("broker")
	if err != nil {
		return fmt.Errorf("failed to get broker flag: %w", err)
	}
	if broker == "" {
		broker = sim.Broker
	}
	interval, err := cmd.Flags().GetDuration("interval")
	if err != nil {
		return fmt.Errorf("failed to get interval flag: %w", err)
	}
	if interval == 0 {
		interval = cfg.GetSimulatorInterval()
	}

	tlsCfg, err := simulator.TLSConfig{
		CAFile:   sim.CAFile,
		CertFile: sim.CertFile,
		KeyFile:  sim.KeyFile,
	}.Load()
	if err != nil {
		return err
	}
	dial, err := simulator.MQTTDialer(broker, sim.ClientID, tlsCfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return simulator.New(dial,
		simulator.WithTopic(sim.Topic),
		simulator.WithDeviceID(sim.DeviceID),
		simulator.WithInterval(interval),
	).Run(ctx)
}
