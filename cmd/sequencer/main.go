package main

import (
	"context"
	"fmt"
	"os"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quasarlabs/sequencer/config"
	"github.com/quasarlabs/sequencer/executor"
	"github.com/quasarlabs/sequencer/storage"
	"github.com/quasarlabs/sequencer/types"
	"github.com/quasarlabs/sequencer/vm"
	"github.com/quasarlabs/sequencer/witness"
)

const (
	flagTxs      = "txs"
	flagTxGas    = "tx_gas"
	flagBatchGas = "batch_gas"
	flagLogLevel = "log_level"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sequencer",
		Short: "batch execution engine tooling",
	}
	cmd.AddCommand(runCmd())
	return cmd
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "execute a demo batch against the in-memory VM and seal it",
		RunE:  runBatch,
	}
	config.AddFlags(cmd)
	cmd.Flags().Int(flagTxs, 10, "number of demo transactions to execute")
	cmd.Flags().Uint64(flagTxGas, 1_000_000, "declared gas limit per demo transaction")
	cmd.Flags().Uint64(flagBatchGas, 20_000_000, "bootloader gas budget of the batch")
	cmd.Flags().String(flagLogLevel, "info", "log level (debug, info, warn, error)")
	return cmd
}

func runBatch(cmd *cobra.Command, args []string) error {
	v := viper.New()
	if err := config.BindFlags(cmd, v); err != nil {
		return err
	}
	if err := logging.SetLogLevel("*", v.GetString(flagLogLevel)); err != nil {
		return err
	}
	cfg, err := config.FromViper(v)
	if err != nil {
		return err
	}

	logger := logging.Logger("sequencer")
	kv := storage.NewInMemoryKVStore()
	defer kv.Close()

	exec := executor.NewBatchExecutor(
		storage.NewFactory(kv),
		func(env types.BatchEnv, view *storage.View) vm.VM {
			return vm.NewDummyVM(env, view)
		},
		cfg,
		logger,
		executor.PrometheusMetrics("sequencer"),
	)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	env := types.NewBatchEnv(1, time.Now(), v.GetUint64(flagBatchGas))
	handle, err := exec.InitBatch(ctx, env)
	if err != nil {
		return err
	}
	if handle == nil {
		return nil
	}
	defer handle.Close()

	included := 0
	for i := 0; i < v.GetInt(flagTxs); i++ {
		tx := &types.Transaction{
			Payload:  []byte(fmt.Sprintf("demo-tx-%d", i)),
			GasLimit: v.GetUint64(flagTxGas),
		}
		res, err := handle.ExecuteTx(ctx, tx)
		if err != nil {
			return err
		}
		switch res.Kind {
		case executor.TxSuccess:
			included++
		case executor.TxBootloaderOutOfGasForBlockTip:
			logger.Info("no room left in batch, rolling back last tx", "tx", tx.Hash())
			if err := handle.RollbackLastTx(ctx); err != nil {
				return err
			}
		default:
			logger.Warn("transaction not included", "tx", tx.Hash(), "result", res)
		}
		if res.Kind == executor.TxBootloaderOutOfGasForBlockTip {
			break
		}
	}

	fin, err := handle.FinishBatch(ctx)
	if err != nil {
		return err
	}
	if err := handle.Wait(ctx); err != nil {
		return err
	}

	if fin.Witness != nil {
		queue := witness.NewQueue(cfg.WitnessQueueCapacity, nil)
		status, err := queue.Submit(&witness.Artifact{BatchNumber: env.Number, State: fin.Witness})
		if err != nil {
			return err
		}
		logger.Info("witness artifact queued", "status", status)
	}

	fmt.Printf("batch %d sealed: %d txs included, block tip %s\n",
		env.Number, included, fin.BlockTip.Result)
	return nil
}
