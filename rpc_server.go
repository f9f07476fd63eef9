package squall

import (
	"fmt"
	"log"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/qetlab/squall/internal/ats"
	"github.com/qetlab/squall/internal/rundb"
)

// AcquisitionControl is the RPC service that handles configuration and
// operation of the digitizer: the control surface the parameter framework
// talks to. One service instance owns one board.
type AcquisitionControl struct {
	board ats.Board

	mu       sync.Mutex
	config   *AcquisitionConfig
	active   *Acquisition
	control  *ControlState
	workers  *errgroup.Group
	started  time.Time
	recorded bool

	// OutputDir, if set, is where treatment consumers drop their averaged
	// NPY records.
	OutputDir string

	clientUpdates chan<- StatusUpdate
	db            *rundb.Connection
}

// NewAcquisitionControl creates the control service for one board. The
// updates channel may be nil when no status publisher is running.
func NewAcquisitionControl(board ats.Board, updates chan<- StatusUpdate) *AcquisitionControl {
	return &AcquisitionControl{
		board:         board,
		clientUpdates: updates,
		db:            rundb.Dummy(),
	}
}

// SetDB attaches a run-recording database connection.
func (s *AcquisitionControl) SetDB(db *rundb.Connection) { s.db = db }

func (s *AcquisitionControl) publish(tag string, v interface{}) {
	if s.clientUpdates == nil {
		return
	}
	s.clientUpdates <- statusUpdate(tag, v)
}

// Configure validates the given parameters and stores them as the
// configuration for subsequent runs. The board is not touched here; a
// config that fails validation never reaches the device. On success the
// config is persisted so the next server start offers it back.
func (s *AcquisitionControl) Configure(args *AcquisitionConfig, reply *AcquisitionConfig) error {
	cfg := *args
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.config = &cfg
	s.mu.Unlock()

	log.Printf("Configured acquisition: %s", spew.Sdump(cfg))
	viper.Set("acquisition", cfg)
	if err := viper.WriteConfig(); err != nil {
		ProblemLogger.Printf("could not persist acquisition config: %v", err)
	}
	s.publish("CONFIGURE", cfg)
	*reply = cfg
	return nil
}

// Start launches the acquisition producer and both treatment consumers.
// It returns immediately with the run ID; progress is polled separately.
func (s *AcquisitionControl) Start(dummy *string, runID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil {
		return fmt.Errorf("no valid configuration; call Configure first")
	}
	if s.active != nil && s.active.State() != AcqClosed {
		return fmt.Errorf("an acquisition is already active (state %s)", s.active.State())
	}

	s.control = NewControlState()
	acq, err := NewAcquisition(s.board, *s.config, s.control)
	if err != nil {
		return err
	}
	s.active = acq
	s.started = time.Now()
	s.recorded = false

	go acq.Run()

	s.workers = new(errgroup.Group)
	treatA := NewAveragedTreatment(0, acq.Config(), s.control)
	treatB := NewAveragedTreatment(1, acq.Config(), s.control)
	if s.OutputDir != "" {
		treatA.OutputPath = fmt.Sprintf("%s/%s_cha.npy", s.OutputDir, acq.RunID)
		treatB.OutputPath = fmt.Sprintf("%s/%s_chb.npy", s.OutputDir, acq.RunID)
	}
	s.workers.Go(func() error { return treatA.Run(acq.QueueA()) })
	s.workers.Go(func() error { return treatB.Run(acq.QueueB()) })

	cfg := acq.Config()
	log.Printf("Started acquisition %s: %d buffers of %d records", acq.RunID,
		cfg.BuffersPerAcquisition(), cfg.RecordsPerBuffer)
	s.publish("START", map[string]interface{}{
		"RunID":   acq.RunID.String(),
		"Buffers": cfg.BuffersPerAcquisition(),
	})
	*runID = acq.RunID.String()
	return nil
}

// Progress reports the percentage of the buffer target completed.
func (s *AcquisitionControl) Progress(dummy *string, percent *float64) error {
	s.mu.Lock()
	acq := s.active
	s.mu.Unlock()
	if acq == nil {
		return fmt.Errorf("no acquisition has been started")
	}
	*percent = acq.Progress()
	return nil
}

// RequestStop asks the running acquisition to finish after its current
// buffer. No direct signal reaches the producer: it discovers the stop by
// polling at its next iteration boundary.
func (s *AcquisitionControl) RequestStop(dummy *string, reply *bool) error {
	s.mu.Lock()
	control := s.control
	s.mu.Unlock()
	if control == nil {
		return fmt.Errorf("no acquisition has been started")
	}
	control.RequestStop()
	s.publish("STOP", "requested")
	*reply = true
	return nil
}

// WaitClosed blocks until the producer and both consumers have exited
// cleanly, then reports the transfer statistics if asked. The join is a
// lock-free spin on the three completion flags; per-buffer timeouts bound it.
func (s *AcquisitionControl) WaitClosed(transferInfo *bool, reply *string) error {
	s.mu.Lock()
	control := s.control
	workers := s.workers
	s.mu.Unlock()
	if control == nil {
		return fmt.Errorf("no acquisition has been started")
	}

	control.WaitClosed()
	if workers != nil {
		if err := workers.Wait(); err != nil {
			ProblemLogger.Printf("treatment worker: %v", err)
		}
	}
	s.recordRun()
	s.publish("CLOSE", map[string]interface{}{
		"Buffers": control.MeasuredBuffers(),
	})
	if *transferInfo {
		*reply = control.Message()
	}
	return nil
}

// recordRun writes one row describing the finished run, once per run.
func (s *AcquisitionControl) recordRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recorded || s.active == nil || !s.db.IsConnected() {
		return
	}
	s.recorded = true
	cfg := s.active.Config()
	s.db.Record(&rundb.RunMessage{
		ID:               s.active.RunID.String(),
		Hostname:         Build.Host,
		Version:          Build.Version,
		ClockSource:      cfg.ClockSource,
		SampleRate:       cfg.SampleRate,
		SamplesPerRecord: cfg.SamplesPerRecord(),
		RecordsPerBuffer: cfg.RecordsPerBuffer,
		BuffersCompleted: s.control.MeasuredBuffers(),
		BytesTransferred: s.active.bytesTransferred,
		Start:            s.started,
		End:              time.Now(),
	})
}

// RunRPCServer sets up and runs a permanent JSON-RPC server for the given
// control service.
func RunRPCServer(ctrl *AcquisitionControl, portrpc int) {
	server := rpc.NewServer()
	if err := server.RegisterName("AcquisitionControl", ctrl); err != nil {
		log.Fatal("register error:", err)
	}

	port := fmt.Sprintf(":%d", portrpc)
	listener, err := net.Listen("tcp", port)
	if err != nil {
		log.Fatal("listen error:", err)
	}
	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Fatal("accept error: " + err.Error())
		}
		log.Printf("new connection established\n")
		go server.ServeCodec(jsonrpc.NewServerCodec(conn))
	}
}
