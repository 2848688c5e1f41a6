package perf

import (
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/tessera-db/tessera/cmd/util"
	"github.com/tessera-db/tessera/rpc/client"
	"github.com/tessera-db/tessera/rpc/common"
)

var (
	// PerfCmd is a load generator reporting throughput and latency
	PerfCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for Tessera servers",
		Long:    `Run a mixed put/get/exists workload against a server and report throughput and latency percentiles per operation.`,
		PreRunE: processPerfConfig,
		RunE:    run,
	}

	perfKeyPrefix  = "__perf"
	perfNumWorkers = 10
	perfKeySpread  = 100
	perfValueSize  = 128
	perfDuration   = 10 * time.Second
)

func init() {
	key := "workers"
	PerfCmd.Flags().Int(key, 10, util.WrapString("Number of concurrent workers"))
	key = "keys"
	PerfCmd.Flags().Int(key, 100, util.WrapString("How many different keys to spread the workload over"))
	key = "value-size"
	PerfCmd.Flags().Int(key, 128, util.WrapString("Size of the written values in bytes"))
	key = "duration"
	PerfCmd.Flags().Duration(key, 10*time.Second, util.WrapString("How long to run the workload"))

	cobra.OnInitialize(util.InitClientConfig)
	util.SetupRPCClientFlags(PerfCmd)
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfNumWorkers = viper.GetInt("workers")
	perfKeySpread = viper.GetInt("keys")
	perfValueSize = viper.GetInt("value-size")
	perfDuration = viper.GetDuration("duration")
	return nil
}

// workload is the per-operation instrumentation of the run.
type workload struct {
	name  string
	meter gometrics.Meter
	timer gometrics.Timer
}

func newWorkload(name string) *workload {
	return &workload{
		name:  name,
		meter: gometrics.NewMeter(),
		timer: gometrics.NewTimer(),
	}
}

// observe runs fn and records its latency and one throughput tick.
func (w *workload) observe(fn func() error) error {
	start := time.Now()
	err := fn()
	w.timer.UpdateSince(start)
	w.meter.Mark(1)
	return err
}

func run(cmd *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for Tessera servers")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Workers: %d, keys: %d, value size: %d B, duration: %s\n\n",
		perfNumWorkers, perfKeySpread, perfValueSize, perfDuration)

	c, err := util.NewClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	table := []byte(perfKeyPrefix)
	value := make([]byte, perfValueSize)

	puts := newWorkload("put")
	gets := newWorkload("get")
	exists := newWorkload("exists")
	workloads := []*workload{puts, gets, exists}

	var errCount atomic.Uint64
	deadline := time.Now().Add(perfDuration)

	var g errgroup.Group
	for w := 0; w < perfNumWorkers; w++ {
		seed := int64(w)
		g.Go(func() error {
			rng := rand.New(rand.NewSource(seed))
			for time.Now().Before(deadline) {
				key := []byte(fmt.Sprintf("%s-%d", perfKeyPrefix, rng.Intn(perfKeySpread)))
				var err error
				switch rng.Intn(4) {
				case 0, 1: // 50% reads
					err = gets.observe(func() error {
						_, _, err := c.GetColumn(table, key, []byte("v"))
						return err
					})
				case 2: // 25% writes
					err = puts.observe(func() error {
						return c.PutColumns(table, key, []common.ColumnData{
							{Name: []byte("v"), Value: value, Timestamp: -1},
						})
					})
				default: // 25% existence checks
					err = exists.observe(func() error {
						_, err := c.Exists(table, key)
						return err
					})
				}
				if err != nil {
					errCount.Add(1)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return util.Runtime(err)
	}

	fmt.Println("results:")
	for _, w := range workloads {
		printWorkload(w)
	}
	if n := errCount.Load(); n > 0 {
		fmt.Printf("\n%d operations failed\n", n)
	}

	// Cleanup: the workload keys are transient test data.
	if err := cleanup(c, table); err != nil {
		fmt.Printf("cleanup failed: %s\n", err)
	}
	return nil
}

// printWorkload reports one operation's meter and timer snapshot.
func printWorkload(w *workload) {
	ts := w.timer.Snapshot()
	ms := w.meter.Snapshot()
	if ms.Count() == 0 {
		fmt.Printf("%-10s skipped\n", w.name)
		return
	}
	fmt.Printf("%-10s %8d ops  %10.0f ops/sec  mean %-12s p95 %-12s p99 %s\n",
		w.name,
		ms.Count(),
		ms.RateMean(),
		time.Duration(ts.Mean()),
		time.Duration(ts.Percentile(0.95)),
		time.Duration(ts.Percentile(0.99)),
	)
}

func cleanup(c client.IKeyspaceClient, table []byte) error {
	for i := 0; i < perfKeySpread; i++ {
		key := []byte(fmt.Sprintf("%s-%d", perfKeyPrefix, i))
		if err := c.DeleteKey(table, key); err != nil {
			return err
		}
	}
	return nil
}
