package serve

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	cmdUtil "github.com/tessera-db/tessera/cmd/util"
	"github.com/tessera-db/tessera/lib/engine"
	"github.com/tessera-db/tessera/lib/replication"
	"github.com/tessera-db/tessera/lib/storage"
	"github.com/tessera-db/tessera/rpc/common"
	"github.com/tessera-db/tessera/rpc/dataplane"
	"github.com/tessera-db/tessera/rpc/serializer"
	"github.com/tessera-db/tessera/rpc/server"
	"github.com/tessera-db/tessera/rpc/transport"
	"github.com/tessera-db/tessera/rpc/transport/tcp"
	"github.com/tessera-db/tessera/rpc/transport/unix"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the Tessera server",
		Long:    `Start the Tessera server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is TESSERA_<flag> (e.g. TESSERA_DATA_DIR=/var/lib/tessera)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(initConfig)

	// add flags
	key := "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("Directory holding the database files"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:6742", cmdUtil.WrapString("The address on which the command plane will listen (e.g. 0.0.0.0:6742 or /tmp/tessera.sock for the unix transport)"))

	key = "data-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("The address on which the data plane (replication and dump file streaming) will listen. Empty disables the data plane"))

	key = "sync-writes"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether commits fsync before they are acknowledged. Disabling trades crash durability for throughput"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout in seconds"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warning, error, critical)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.DataEndpoint = viper.GetString("data-endpoint")
	serveCmdConfig.SyncWrites = viper.GetBool("sync-writes")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	if serveCmdConfig.DataDir == "" {
		return fmt.Errorf("data-dir must not be empty")
	}
	return nil
}

// run starts the Tessera server
func run(_ *cobra.Command, _ []string) error {

	// parse the serializer
	var s serializer.IRPCSerializer
	switch viper.GetString("serializer") {
	case "json":
		s = serializer.NewJSONSerializer()
	case "gob":
		s = serializer.NewGOBSerializer()
	case "binary":
		s = serializer.NewBinarySerializer()
	default:
		return fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}

	// Parse the transport
	var t transport.IRPCServerTransport
	switch viper.GetString("transport") {
	case "tcp":
		t = tcp.NewTCPDefaultServerTransport()
	case "unix":
		t = unix.NewUnixDefaultServerTransport()
	default:
		return fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}

	// Open the store and the engine on top of it
	store, err := storage.Open(storage.Options{
		Dir:         filepath.Join(serveCmdConfig.DataDir, "db"),
		DisableSync: !serveCmdConfig.SyncWrites,
	})
	if err != nil {
		return cmdUtil.Runtime(err)
	}
	defer store.Close()

	eng, err := engine.New(store)
	if err != nil {
		return cmdUtil.Runtime(err)
	}

	g, ctx := errgroup.WithContext(context.Background())

	// The data plane is optional; when enabled, commits are fanned out to
	// replication subscribers via the hub.
	if serveCmdConfig.DataEndpoint != "" {
		hub := replication.NewHub()
		eng.SetCommitObserver(hub.Observer())
		dumps := dataplane.NewDumpRegistry(store, filepath.Join(serveCmdConfig.DataDir, "dumps"))
		dp := dataplane.NewServer(hub, dumps)
		g.Go(func() error {
			return dp.Listen(ctx, serveCmdConfig.DataEndpoint)
		})
	}

	g.Go(func() error {
		serv := server.NewRPCServer(*serveCmdConfig, eng, t, s)
		return serv.Serve()
	})

	return cmdUtil.Runtime(g.Wait())
}

// initConfig reads in serveCmdConfig file and ENV variables if set.
func initConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("tessera")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

}
