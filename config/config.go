package config

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

const (
	// FlagMaxTxGasLimit is a flag for the per-transaction gas limit ceiling
	FlagMaxTxGasLimit = "executor.max_tx_gas_limit"
	// FlagSaveCallTraces is a flag for collecting call traces during execution
	FlagSaveCallTraces = "executor.save_call_traces"
	// FlagCaptureWitness is a flag for materializing witness state on batch seal
	FlagCaptureWitness = "executor.capture_witness"
	// FlagBytecodeCompression is a flag for attempting bytecode compression
	FlagBytecodeCompression = "executor.bytecode_compression"
	// FlagWitnessQueueCapacity is a flag for the witness admission queue capacity
	FlagWitnessQueueCapacity = "executor.witness_queue_capacity"
)

// ExecutorConfig holds the knobs of the batch execution engine.
type ExecutorConfig struct {
	// MaxAllowedTxGasLimit is the ceiling on a transaction's declared gas
	// limit; transactions above it are rejected without touching the VM.
	MaxAllowedTxGasLimit uint64 `mapstructure:"max_tx_gas_limit"`

	// SaveCallTraces attaches a call tracer to every execution.
	SaveCallTraces bool `mapstructure:"save_call_traces"`

	// CaptureWitness materializes the storage witness state on batch seal.
	CaptureWitness bool `mapstructure:"capture_witness"`

	// OptionalBytecodeCompression enables the compression retry protocol.
	// When disabled, transactions whose bytecodes cannot be published
	// compressed are rejected outright.
	OptionalBytecodeCompression bool `mapstructure:"bytecode_compression"`

	// WitnessQueueCapacity bounds the downstream witness admission queue.
	WitnessQueueCapacity int `mapstructure:"witness_queue_capacity"`
}

// DefaultExecutorConfig returns the default engine configuration.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxAllowedTxGasLimit:        80_000_000,
		SaveCallTraces:              false,
		CaptureWitness:              false,
		OptionalBytecodeCompression: true,
		WitnessQueueCapacity:        16,
	}
}

// Validate reports all configuration problems at once.
func (c ExecutorConfig) Validate() error {
	var err error
	if c.MaxAllowedTxGasLimit == 0 {
		err = multierr.Append(err, errors.New("max allowed tx gas limit must be positive"))
	}
	if c.WitnessQueueCapacity <= 0 {
		err = multierr.Append(err, fmt.Errorf("witness queue capacity must be positive, got %d", c.WitnessQueueCapacity))
	}
	return err
}

// AddFlags registers executor flags on the command.
func AddFlags(cmd *cobra.Command) {
	def := DefaultExecutorConfig()
	cmd.Flags().Uint64(FlagMaxTxGasLimit, def.MaxAllowedTxGasLimit, "ceiling on a transaction's declared gas limit")
	cmd.Flags().Bool(FlagSaveCallTraces, def.SaveCallTraces, "collect call traces during execution")
	cmd.Flags().Bool(FlagCaptureWitness, def.CaptureWitness, "materialize witness state when sealing a batch")
	cmd.Flags().Bool(FlagBytecodeCompression, def.OptionalBytecodeCompression, "attempt bytecode compression with retry on publication failure")
	cmd.Flags().Int(FlagWitnessQueueCapacity, def.WitnessQueueCapacity, "capacity of the witness admission queue")
}

// FromViper builds an ExecutorConfig from viper, falling back to defaults
// for unset keys, and validates it.
func FromViper(v *viper.Viper) (ExecutorConfig, error) {
	def := DefaultExecutorConfig()
	v.SetDefault(FlagMaxTxGasLimit, def.MaxAllowedTxGasLimit)
	v.SetDefault(FlagSaveCallTraces, def.SaveCallTraces)
	v.SetDefault(FlagCaptureWitness, def.CaptureWitness)
	v.SetDefault(FlagBytecodeCompression, def.OptionalBytecodeCompression)
	v.SetDefault(FlagWitnessQueueCapacity, def.WitnessQueueCapacity)

	cfg := ExecutorConfig{
		MaxAllowedTxGasLimit:        v.GetUint64(FlagMaxTxGasLimit),
		SaveCallTraces:              v.GetBool(FlagSaveCallTraces),
		CaptureWitness:              v.GetBool(FlagCaptureWitness),
		OptionalBytecodeCompression: v.GetBool(FlagBytecodeCompression),
		WitnessQueueCapacity:        v.GetInt(FlagWitnessQueueCapacity),
	}
	if err := cfg.Validate(); err != nil {
		return ExecutorConfig{}, fmt.Errorf("invalid executor config: %w", err)
	}
	return cfg, nil
}

// BindFlags binds the command's flags into viper so FromViper sees
// command-line overrides.
func BindFlags(cmd *cobra.Command, v *viper.Viper) error {
	return v.BindPFlags(cmd.Flags())
}
