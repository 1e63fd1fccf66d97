package shardconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

// command is the single operation a ReplicatedStore's FSM knows how
// to apply: replace the current configuration wholesale. Shaped as an
// Op/Data envelope with an Apply switch even though there is only one
// op here, so adding a second later (e.g. incremental range patches)
// doesn't require reshaping the wire format.
type command struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

const opPutConfiguration = "put_configuration"

// fsm is the raft.FSM backing a ReplicatedStore: it holds the current
// Configuration in memory and persists it via snapshot/restore.
type fsm struct {
	current *Configuration
}

func newFSM() *fsm {
	return &fsm{current: NewConfiguration()}
}

// Apply decodes and applies one committed log entry.
func (f *fsm) Apply(l *raft.Log) interface{} {
	var cmd command
	if err := json.Unmarshal(l.Data, &cmd); err != nil {
		return fmt.Errorf("decoding raft command: %w", err)
	}

	switch cmd.Op {
	case opPutConfiguration:
		var cfg Configuration
		if err := json.Unmarshal(cmd.Data, &cfg); err != nil {
			return fmt.Errorf("decoding configuration payload: %w", err)
		}
		f.current = &cfg
		return nil
	default:
		return fmt.Errorf("unknown shard configuration command %q", cmd.Op)
	}
}

// Snapshot returns a point-in-time copy of the current configuration.
func (f *fsm) Snapshot() (raft.FSMSnapshot, error) {
	return &fsmSnapshot{cfg: f.current.Clone()}, nil
}

// Restore replaces the in-memory configuration from a snapshot.
func (f *fsm) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	var cfg Configuration
	if err := json.NewDecoder(rc).Decode(&cfg); err != nil {
		return fmt.Errorf("decoding shard configuration snapshot: %w", err)
	}
	f.current = &cfg
	return nil
}

type fsmSnapshot struct {
	cfg *Configuration
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	err := json.NewEncoder(sink).Encode(s.cfg)
	if err != nil {
		sink.Cancel()
		return err
	}
	return sink.Close()
}

func (s *fsmSnapshot) Release() {}

// ReplicatedStore is a Store whose writes are agreed on by Raft
// consensus across the coordinator cluster, so every coordinator
// process converges on the same routing generation. The FSM and
// bootstrap wiring follow the usual single-voter/multi-voter raft
// setup, repointed from general cluster-entity CRUD onto
// shard-routing-table CRUD.
type ReplicatedStore struct {
	raft         *raft.Raft
	fsm          *fsm
	applyTimeout time.Duration
}

// ReplicatedStoreConfig configures Raft bootstrap for one node.
type ReplicatedStoreConfig struct {
	NodeID          string
	BindAddr        string // host:port this node's raft transport listens on
	DataDir         string // directory for the raft log/stable store and snapshots
	Bootstrap       bool   // true for the single node forming a brand-new cluster
	ApplyTimeout    time.Duration
}

// NewReplicatedStore bootstraps (or rejoins) a Raft-backed
// ReplicatedStore.
func NewReplicatedStore(cfg ReplicatedStoreConfig) (*ReplicatedStore, error) {
	if cfg.ApplyTimeout == 0 {
		cfg.ApplyTimeout = 5 * time.Second
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating raft data dir: %w", err)
	}

	raftCfg := raft.DefaultConfig()
	raftCfg.LocalID = raft.ServerID(cfg.NodeID)

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("resolving raft bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("creating raft transport: %w", err)
	}

	snapshots, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("creating raft snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-log.bolt"))
	if err != nil {
		return nil, fmt.Errorf("creating raft log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-stable.bolt"))
	if err != nil {
		return nil, fmt.Errorf("creating raft stable store: %w", err)
	}

	machine := newFSM()

	r, err := raft.NewRaft(raftCfg, machine, logStore, stableStore, snapshots, transport)
	if err != nil {
		return nil, fmt.Errorf("starting raft: %w", err)
	}

	if cfg.Bootstrap {
		future := r.BootstrapCluster(raft.Configuration{
			Servers: []raft.Server{
				{ID: raftCfg.LocalID, Address: transport.LocalAddr()},
			},
		})
		if err := future.Error(); err != nil {
			return nil, fmt.Errorf("bootstrapping raft cluster: %w", err)
		}
	}

	return &ReplicatedStore{raft: r, fsm: machine, applyTimeout: cfg.ApplyTimeout}, nil
}

// Get returns the locally-held configuration. On a follower this may
// lag the leader by at most one replication round; callers needing a
// linearizable read should route through the leader instead.
func (s *ReplicatedStore) Get(ctx context.Context) (*Configuration, error) {
	return s.fsm.current.Clone(), nil
}

// Put replicates cfg via Raft consensus. Only the current leader can
// succeed; followers return raft.ErrNotLeader.
func (s *ReplicatedStore) Put(ctx context.Context, cfg *Configuration) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling configuration: %w", err)
	}
	cmd := command{Op: opPutConfiguration, Data: data}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshaling raft command: %w", err)
	}

	future := s.raft.Apply(payload, s.applyTimeout)
	if err := future.Error(); err != nil {
		return fmt.Errorf("applying raft command: %w", err)
	}
	if errResp, ok := future.Response().(error); ok && errResp != nil {
		return fmt.Errorf("fsm rejected configuration: %w", errResp)
	}
	return nil
}

// IsLeader reports whether this node is the current Raft leader.
func (s *ReplicatedStore) IsLeader() bool {
	return s.raft.State() == raft.Leader
}

// Shutdown gracefully stops the Raft node.
func (s *ReplicatedStore) Shutdown() error {
	return s.raft.Shutdown().Error()
}
