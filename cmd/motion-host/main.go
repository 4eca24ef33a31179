// Command motion-host wires a controller transport, the task-stream
// decoder, and the reliability-layer player together, and serves a small
// HTTP status/control API over the running session.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"motionstream/internal/clock"
	"motionstream/internal/config"
	"motionstream/internal/correction"
	"motionstream/internal/motion"
	"motionstream/internal/player"
	"motionstream/internal/trace"
	"motionstream/internal/transport"
)

var (
	httpAddr       = flag.String("http", "", "HTTP status API address (empty = use config)")
	streamPath     = flag.String("stream", "", "path to read the binary task stream from (empty = stdin)")
	deviceOverride = flag.String("device", "", "controller device path (empty = use config)")
	traceIfaceFlag = flag.String("trace-iface", "", "network interface to attach the backpressure tracer to (empty = use config, disabled if still empty)")
)

// session bundles everything the HTTP handlers need to report on, guarded
// by mu for the fields the read/write loops mutate concurrently.
type session struct {
	cfg     *config.SessionConfig
	decoder *motion.Decoder
	plr     *player.Player
	started clock.Timestamp

	tracer     *trace.Tracer
	stallCount uint64 // atomic

	mu          sync.RWMutex
	lastLN      time.Time
	passthrough []string
}

func (s *session) recordStall(count uint32) {
	atomic.StoreUint64(&s.stallCount, uint64(count))
}

func (s *session) loadStallCount() uint64 {
	return atomic.LoadUint64(&s.stallCount)
}

func (s *session) recordPassthrough(line []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passthrough = append(s.passthrough, string(line))
	if len(s.passthrough) > 32 {
		s.passthrough = s.passthrough[len(s.passthrough)-32:]
	}
	s.lastLN = time.Now()
}

func (s *session) recentPassthrough() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.passthrough))
	copy(out, s.passthrough)
	return out
}

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}
	if *deviceOverride != "" {
		cfg.DevicePath = *deviceOverride
	}
	if *traceIfaceFlag != "" {
		cfg.TraceIface = *traceIfaceFlag
	}

	log.Printf("motion-host starting, session %s", cfg.SessionID)

	tr, closeTr, err := openTransport(cfg)
	if err != nil {
		log.Fatalf("transport: %v", err)
	}
	defer closeTr()

	decoder := motion.NewDecoder(cfg.Motion)
	plr := player.New(tr, 0)

	sess := &session{
		cfg:     cfg,
		decoder: decoder,
		plr:     plr,
		started: clock.Now(),
	}

	if cfg.TraceIface != "" {
		tracer, err := trace.Attach(cfg.TraceIface)
		if err != nil {
			log.Printf("motion-host: backpressure tracer disabled: %v", err)
		} else {
			sess.tracer = tracer
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return readLoop(gctx, sess) })
	g.Go(func() error { return writeLoop(gctx, sess) })
	if sess.tracer != nil {
		g.Go(func() error { return traceLoop(gctx, sess) })
	}

	srv := newHTTPServer(cfg.HTTPAddr, sess)
	g.Go(func() error {
		log.Printf("motion-host: status API listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		log.Println("motion-host: shutting down...")
	case <-gctx.Done():
		log.Printf("motion-host: stopping due to: %v", gctx.Err())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("motion-host: http shutdown error: %v", err)
	}

	cancel()
	if sess.tracer != nil {
		// traceLoop blocks in ReadStall until the ring buffer reader is
		// closed, so it needs an explicit close to unblock before Wait.
		if err := sess.tracer.Close(); err != nil {
			log.Printf("motion-host: tracer close error: %v", err)
		}
	}
	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Printf("motion-host: stopped with error: %v", err)
	}
	log.Println("motion-host: stopped")
}

// traceLoop drains the backpressure tracer's ring buffer, recording the
// latest stall count for the status API to poll.
func traceLoop(ctx context.Context, sess *session) error {
	for {
		count, err := sess.tracer.ReadStall()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return fmt.Errorf("trace-loop: %w", err)
			}
		}
		sess.recordStall(count)
	}
}

// openTransport opens the controller channel per cfg.TransportKind,
// returning the transport and a close func (no-op on failure paths that
// already return an error).
func openTransport(cfg *config.SessionConfig) (player.Transport, func(), error) {
	switch cfg.TransportKind {
	case config.TransportUSB:
		usb, err := transport.OpenUSB(cfg.USBVendorID, cfg.USBProductID, 5*time.Second)
		if err != nil {
			return nil, func() {}, err
		}
		return usb, func() { usb.Close() }, nil
	default:
		p, err := transport.OpenPipe(cfg.DevicePath)
		if err != nil {
			return nil, func() {}, err
		}
		return p, func() { p.Close() }, nil
	}
}

// writeLoop decodes the task stream and feeds emitted commands to the
// player. MAIN-targeted commands go through Send, which assigns a line
// number and tracks the frame for retransmission; every other target
// (HEAD/BLOCK_HEAD/PAUSE) goes through SendTool, which frames it for the
// tool channel and writes it straight to the transport, bypassing the
// line-numbered dialogue entirely.
func writeLoop(ctx context.Context, sess *session) error {
	src, err := openStream()
	if err != nil {
		return fmt.Errorf("write-loop: %w", err)
	}
	defer src.Close()

	sink := func(command string, target motion.Target) error {
		if target == motion.MAIN {
			_, err := sess.plr.Send(command)
			return err
		}
		log.Printf("motion-host: %s channel command: %q", target, command)
		return sess.plr.SendTool(command)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, err := sess.decoder.Feed(src, sink)
		if err == io.EOF {
			log.Println("motion-host: task stream exhausted")
			return nil
		}
		if err != nil {
			return fmt.Errorf("write-loop: decode: %w", err)
		}
	}
}

func openStream() (io.ReadCloser, error) {
	if *streamPath == "" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(*streamPath)
}

// readLoop drains controller replies, dispatching LN/ER handling inside
// Player and recording everything else for the status API.
func readLoop(ctx context.Context, sess *session) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := sess.plr.ReadAndHandle(sess.recordPassthrough); err != nil {
			return fmt.Errorf("read-loop: %w", err)
		}
	}
}

type correctionRequest struct {
	EndstopX    float64 `json:"endstop_x"`
	EndstopY    float64 `json:"endstop_y"`
	EndstopZ    float64 `json:"endstop_z"`
	EndstopH    float64 `json:"endstop_h"`
	Tower0Z     float64 `json:"tower0_z"`
	Tower1Z     float64 `json:"tower1_z"`
	Tower2Z     float64 `json:"tower2_z"`
	CenterZ     float64 `json:"center_z"`
	DeltaRadius float64 `json:"delta_radius"`
}

func newHTTPServer(addr string, sess *session) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/status", func(c *gin.Context) {
		st := sess.decoder.State()
		c.JSON(http.StatusOK, gin.H{
			"session_id":   sess.cfg.SessionID,
			"uptime":       sess.started.Since().String(),
			"sent_len":     sess.plr.SentLen(),
			"padding_len":  sess.plr.PaddingLen(),
			"generation":   sess.plr.Generation(),
			"frame_stats":  sess.plr.Stats(),
			"motion_state": st,
			"passthrough":  sess.recentPassthrough(),
			"stall_count":  sess.loadStallCount(),
			"tracing":      sess.tracer != nil,
		})
	})

	router.GET("/queue", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"sent_len":    sess.plr.SentLen(),
			"padding_len": sess.plr.PaddingLen(),
			"generation":  sess.plr.Generation(),
		})
	})

	router.POST("/correction", func(c *gin.Context) {
		var req correctionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		probes := correction.ProbePoints{
			Tower0Z: req.Tower0Z,
			Tower1Z: req.Tower1Z,
			Tower2Z: req.Tower2Z,
			CenterZ: req.CenterZ,
		}

		result, ok := correction.Calculate(req.EndstopX, req.EndstopY, req.EndstopZ, req.EndstopH, probes, req.DeltaRadius)
		if !ok {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "calibration solver did not converge"})
			return
		}
		c.JSON(http.StatusOK, result)
	})

	return &http.Server{Addr: addr, Handler: router}
}
