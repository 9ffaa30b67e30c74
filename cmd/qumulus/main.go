// Command qumulus runs a single replica: the client-facing API
// listener, the peer-to-peer cluster listener, the monitor's status
// endpoint, and an operator shell on stdin. Grounded on
// original_source/src/main.rs, whose own main is a three-line
// Server::new(8888).listen() followed by a parked thread; the wiring
// here is the same shape, generalized across config.Load's resolved
// addresses and the full set of actors this implementation spawns.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/qumulus-db/qumulus/internal/clientproto"
	"github.com/qumulus-db/qumulus/internal/cluster"
	"github.com/qumulus-db/qumulus/internal/config"
	"github.com/qumulus-db/qumulus/internal/delegatepolicy"
	"github.com/qumulus-db/qumulus/internal/logging"
	"github.com/qumulus-db/qumulus/internal/manager"
	"github.com/qumulus-db/qumulus/internal/monitor"
	"github.com/qumulus-db/qumulus/internal/shell"
	"github.com/qumulus-db/qumulus/internal/stats"
	"github.com/qumulus-db/qumulus/internal/store"
	"github.com/qumulus-db/qumulus/signals"
)

func main() {
	configPath := flag.String("config", "", "path to an optional YAML config file")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-config path] <ID>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	log := slog.New(logging.DefaultHandler)
	slog.SetDefault(log)

	cfg, err := config.Load(flag.Arg(0), os.Getenv("CLUSTER"), *configPath)
	if err != nil {
		log.Error("config failed", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("qumulus exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	backend, err := store.NewFS(cfg.DataDir)
	if err != nil {
		return err
	}
	storeHandle := store.Spawn(backend, store.Config{
		ReadWorkers:  cfg.Tunables.ReadWorkers,
		WriteWorkers: cfg.Tunables.WriteWorkers,
	}, log)

	clusterActor, clusterHandle, err := cluster.PreSpawn(cluster.Config{
		ListenAddr: cfg.PeerAddr,
		Peers:      cfg.Peers,
	}, log)
	if err != nil {
		return err
	}

	policy := delegatepolicy.Policy{
		Threshold:      cfg.Tunables.DelegateThreshold,
		TargetFraction: cfg.Tunables.DelegateTargetShare,
	}
	managerHandle := manager.Spawn(storeHandle, clusterHandle, policy, manager.Config{
		Soft: cfg.Tunables.Soft,
		Hard: cfg.Tunables.Hard,
	}, log)
	clusterActor.Start(managerHandle)

	st := stats.New()

	apiServer, err := clientproto.Listen(cfg.APIAddr, managerHandle, st, log)
	if err != nil {
		return err
	}
	go func() {
		if err := apiServer.Serve(); err != nil {
			log.Error("client listener stopped", "error", err)
		}
	}()

	monitorServer := monitor.New(cfg.MonitorAddr, st, log)
	go func() {
		if err := monitorServer.ListenAndServe(); err != nil {
			log.Error("monitor listener stopped", "error", err)
		}
	}()

	log.Info("replica started",
		"id", cfg.ID,
		"api", cfg.APIAddr,
		"peer", cfg.PeerAddr,
		"monitor", cfg.MonitorAddr,
		"peers", cfg.Peers,
	)

	sig := signals.SetupHandler()
	shutdown := make(chan struct{})
	shutdownOnce := func() {
		select {
		case <-shutdown:
		default:
			close(shutdown)
		}
	}

	sh := shell.New(os.Stdin, os.Stdout, shell.Config{
		Manager: managerHandle,
		Store:   storeHandle,
		Cluster: clusterHandle,
		Stats:   st,
		OnExit:  shutdownOnce,
	})
	go sh.Run()

	select {
	case s := <-sig:
		log.Info("received signal", "signal", s.String())
	case <-shutdown:
	}

	apiServer.Close()
	monitorServer.Close()
	return nil
}
