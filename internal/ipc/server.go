package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"log/slog"

	"courier/internal/api"
	"courier/internal/daemon"
	"courier/internal/delivery"
	"courier/internal/logging"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server
	shutdown  func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ServerOption adjusts optional server behavior.
type ServerOption func(*Server)

// WithShutdown installs fn to run after a Stop request has been
// acknowledged. The daemon process uses it to exit on request.
func WithShutdown(fn func()) ServerOption {
	return func(s *Server) {
		if fn != nil {
			s.shutdown = fn
		}
	}
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger, opts ...ServerOption) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	server := &Server{
		path:     path,
		daemon:   d,
		logger:   logger,
		listener: listener,
		ctx:      serverCtx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(server)
		}
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: serverCtx, shutdown: server.shutdown}
	if err := rpcServer.RegisterName("Courier", srv); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}
	server.rpcServer = rpcServer
	return server, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String("impact", "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String("impact", "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun courier daemon stop"))
	}
}

type service struct {
	daemon   *daemon.Daemon
	logger   *slog.Logger
	ctx      context.Context
	shutdown func()
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String("component", "ipc"))
}

func (s *service) Ping(_ PingRequest, resp *PingResponse) error {
	resp.Pong = true
	resp.PID = os.Getpid()
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Status = StatusSummary{
		Running:      status.Running,
		PID:          status.PID,
		Version:      status.Version,
		StartedAt:    api.FormatTime(status.StartedAt),
		Degraded:     status.Degraded,
		StorePath:    status.StorePath,
		LockPath:     status.LockPath,
		SocketPath:   status.SocketPath,
		Network:      api.FromConnectivityStatus(status.Network),
		QueueDepth:   status.QueueDepth,
		DepthByClass: status.DepthByClass,
	}
	if status.CacheUsage != nil {
		usage := api.FromCacheUsage(*status.CacheUsage)
		resp.Status.Cache = &usage
	}
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Info("daemon stop requested via IPC",
		logging.String(logging.FieldEventType, "daemon_stop_requested"))
	resp.Stopped = true
	if s.shutdown != nil {
		// Out of band so the reply reaches the client before the
		// listener closes.
		go s.shutdown()
	}
	return nil
}

func (s *service) QueueList(req QueueListRequest, resp *QueueListResponse) error {
	items, err := s.daemon.ListQueue(s.ctx, req.Classes...)
	if err != nil {
		return err
	}
	resp.Items = api.FromRequests(items)
	return nil
}

func (s *service) QueueDepth(_ QueueDepthRequest, resp *QueueDepthResponse) error {
	total, byClass, err := s.daemon.QueueDepth(s.ctx)
	if err != nil {
		return err
	}
	resp.Total = total
	resp.ByClass = byClass
	return nil
}

func (s *service) QueueClear(req QueueClearRequest, resp *QueueClearResponse) error {
	s.log().Debug("queue clear requested", logging.String(logging.FieldClass, req.Class))
	var (
		removed int64
		err     error
	)
	if req.Class == "" {
		removed, err = s.daemon.ClearQueue(s.ctx)
	} else {
		removed, err = s.daemon.ClearClass(s.ctx, req.Class)
	}
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.log().Info("queue cleared via IPC",
		logging.String(logging.FieldEventType, "queue_clear"),
		logging.String(logging.FieldClass, req.Class),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) QueueRemove(req QueueRemoveRequest, resp *QueueRemoveResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid queue request id %d", req.ID)
	}
	removed, err := s.daemon.RemoveRequest(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Removed = removed
	if removed {
		s.log().Info("queue request removed via IPC",
			logging.String(logging.FieldEventType, "queue_remove"),
			logging.Int64(logging.FieldRequestID, req.ID))
	}
	return nil
}

func (s *service) QueueHealth(_ QueueHealthRequest, resp *QueueHealthResponse) error {
	summary, err := s.daemon.QueueHealth(s.ctx)
	if err != nil {
		return err
	}
	resp.Report.Queue = api.FromHealthSummary(summary)
	resp.Report.Degraded = s.daemon.Degraded()
	db, err := s.daemon.DatabaseHealth(s.ctx)
	if err != nil && (db == nil || db.Error == "") {
		return err
	}
	if db != nil {
		dto := api.FromDatabaseHealth(*db)
		resp.Report.Database = &dto
	}
	return nil
}

func (s *service) Enqueue(req EnqueueRequest, resp *EnqueueResponse) error {
	s.log().Debug("enqueue requested",
		logging.String(logging.FieldURL, req.URL),
		logging.String(logging.FieldClass, req.Class))
	stored, err := s.daemon.Enqueue(s.ctx, delivery.CallRequest{
		URL:        req.URL,
		Method:     req.Method,
		Headers:    req.Headers,
		Body:       req.Body,
		Class:      req.Class,
		MaxRetries: req.MaxRetries,
	})
	if err != nil {
		return err
	}
	resp.Item = api.FromRequest(stored)
	return nil
}

func (s *service) Submit(req SubmitRequest, resp *SubmitResponse) error {
	s.log().Debug("live submit requested",
		logging.String(logging.FieldURL, req.URL),
		logging.String(logging.FieldClass, req.Class))
	result, err := s.daemon.Submit(s.ctx, delivery.CallRequest{
		URL:        req.URL,
		Method:     req.Method,
		Headers:    req.Headers,
		Body:       req.Body,
		Class:      req.Class,
		MaxRetries: req.MaxRetries,
	})
	if err != nil {
		return err
	}
	resp.Delivered = result.Delivered
	resp.Queued = result.Queued
	resp.RequestID = result.RequestID
	if result.Response != nil {
		resp.StatusCode = result.Response.StatusCode
		resp.Body = result.Response.Body
	}
	return nil
}

func (s *service) Flush(_ FlushRequest, resp *FlushResponse) error {
	s.log().Debug("manual flush requested")
	if err := s.daemon.Flush(s.ctx); err != nil {
		return err
	}
	resp.Flushed = true
	if total, _, err := s.daemon.QueueDepth(s.ctx); err == nil {
		resp.Remaining = total
	}
	return nil
}

func (s *service) NetworkStatus(_ NetworkStatusRequest, resp *NetworkStatusResponse) error {
	resp.Network = api.FromConnectivityStatus(s.daemon.NetworkStatus())
	return nil
}

func (s *service) CacheGet(req CacheGetRequest, resp *CacheGetResponse) error {
	item, err := s.daemon.CacheGet(s.ctx, req.Type, req.Key)
	if err != nil {
		return err
	}
	if item == nil {
		return nil
	}
	entry := api.FromCachedItem(item)
	resp.Found = true
	resp.Entry = &entry
	return nil
}

func (s *service) CacheSet(req CacheSetRequest, resp *CacheSetResponse) error {
	ttl := time.Duration(req.TTLSeconds) * time.Second
	if err := s.daemon.CacheSet(s.ctx, req.Type, req.Key, req.Payload, ttl); err != nil {
		return err
	}
	resp.Stored = true
	return nil
}

func (s *service) CacheDelete(req CacheDeleteRequest, resp *CacheDeleteResponse) error {
	deleted, err := s.daemon.CacheDelete(s.ctx, req.Type, req.Key)
	if err != nil {
		return err
	}
	resp.Deleted = deleted
	return nil
}

func (s *service) CacheStats(_ CacheStatsRequest, resp *CacheStatsResponse) error {
	usage, err := s.daemon.CacheStats(s.ctx)
	if err != nil {
		return err
	}
	resp.Usage = api.FromCacheUsage(usage)
	return nil
}

func (s *service) CacheSweep(_ CacheSweepRequest, resp *CacheSweepResponse) error {
	removed, err := s.daemon.CacheSweep(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.log().Info("cache swept via IPC",
		logging.String(logging.FieldEventType, "cache_sweep"),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
