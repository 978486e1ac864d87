package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"k8s.io/klog/v2"
)

// -----------------------------
// Job 定义
// -----------------------------
type Job struct {
	SessionID  string
	EnqueuedAt time.Time
	Timeout    time.Duration
}

// -----------------------------
// SessionExecutor 接口
// -----------------------------
// 执行失败由执行方负责把会话标记为 failed，编排器不做重试
type SessionExecutor interface {
	ExecuteSession(ctx context.Context, sessionID string) error
}

// -----------------------------
// Orchestrator
// -----------------------------
type Orchestrator struct {
	jobQueue *jobQueue

	pool *ants.Pool

	executor SessionExecutor

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once

	activeCancellations map[string]context.CancelFunc
	cancelMutex         sync.Mutex
}

// -----------------------------
// 错误定义
// -----------------------------
var (
	ErrOrchestratorStopped = errors.New("orchestrator is stopped")
	ErrQueueFull           = errors.New("job queue is full")
)

// NewSessionJob 创建一个新的会话任务对象
func NewSessionJob(sessionID string, timeout time.Duration) *Job {
	return &Job{
		SessionID:  sessionID,
		EnqueuedAt: time.Now(),
		Timeout:    timeout,
	}
}

// -----------------------------
// 构造函数
// -----------------------------
func NewOrchestrator(maxWorkers int, executor SessionExecutor) (*Orchestrator, error) {
	ctx, cancel := context.WithCancel(context.Background())

	jobQ := newJobQueue(120)

	pool, err := ants.NewPool(maxWorkers,
		ants.WithNonblocking(false),
		ants.WithMaxBlockingTasks(1000),
		ants.WithExpiryDuration(5*time.Minute),
	)
	if err != nil {
		klog.Errorf("ants pool initialization failed: %v", err)
		cancel()
		return nil, err
	}

	return &Orchestrator{
		jobQueue:            jobQ,
		pool:                pool,
		activeCancellations: make(map[string]context.CancelFunc),
		executor:            executor,
		ctx:                 ctx,
		cancel:              cancel,
	}, nil
}

// -----------------------------
// 启动
// -----------------------------
func (o *Orchestrator) Start() {
	go o.dispatchLoop()
}

// -----------------------------
// 停止
// -----------------------------
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		klog.V(6).Infof("Orchestrator stopping...")

		// 1. 停止接收新任务，关闭队列
		o.cancel()
		o.jobQueue.Close()

		// 2. 丢弃尚未分发的任务
		// cancel 之后 dispatchLoop 不再消费，这些会话停在 pending，
		// 下次启动由 CleanupStuckSessions 统一标记失败
		if dropped := o.jobQueue.Drain(); dropped > 0 {
			klog.Warningf("Discarded %d queued sessions on shutdown", dropped)
		}

		// 3. 等待正在执行的会话完成
		runningTasks := o.pool.Running()
		if runningTasks > 0 {
			klog.V(6).Infof("Waiting for %d running sessions to complete", runningTasks)
		}

		timeout := 3 * time.Minute
		if rErr := o.pool.ReleaseTimeout(timeout); rErr == nil {
			klog.V(6).Infof("All running sessions completed before timeout")
		} else {
			klog.Warningf("Timeout after %v: some running sessions may be forced to stop", timeout)
		}

		klog.V(6).Infof("Orchestrator stopped completely")
	})
}

// -----------------------------
// 入队任务
// -----------------------------
func (o *Orchestrator) EnqueueJob(job *Job) error {
	select {
	case <-o.ctx.Done():
		return ErrOrchestratorStopped
	default:
	}

	if err := o.jobQueue.Enqueue(job); err != nil {
		if errors.Is(err, ErrQueueFull) {
			klog.Warningf("Job queue full: sessionID=%s", job.SessionID)
		}
		return err
	}
	klog.V(6).Infof("Job enqueued: sessionID=%s", job.SessionID)
	return nil
}

// -----------------------------
// 取消任务
// -----------------------------
func (o *Orchestrator) registerCancel(sessionID string, cancel context.CancelFunc) {
	o.cancelMutex.Lock()
	defer o.cancelMutex.Unlock()
	o.activeCancellations[sessionID] = cancel
}

func (o *Orchestrator) unregisterCancel(sessionID string) {
	o.cancelMutex.Lock()
	defer o.cancelMutex.Unlock()
	delete(o.activeCancellations, sessionID)
}

// CancelSession 取消运行中的会话分析
// 执行方在感知到取消后把会话标记为 failed
func (o *Orchestrator) CancelSession(sessionID string) bool {
	o.cancelMutex.Lock()
	cancel, ok := o.activeCancellations[sessionID]
	o.cancelMutex.Unlock()
	if !ok {
		return false
	}

	klog.V(6).Infof("Cancelling session: sessionID=%s", sessionID)
	cancel()
	return true
}

// -----------------------------
// Dispatch Loop
// -----------------------------
func (o *Orchestrator) dispatchLoop() {
	for {
		select {
		case <-o.ctx.Done():
			return
		default:
			job, ok := o.jobQueue.Dequeue()
			if !ok {
				continue
			}
			// Submit 在池满时阻塞等待空闲 worker
			if err := o.pool.Submit(func() {
				o.executeJob(job)
			}); err != nil {
				klog.Errorf("提交会话到协程池失败: sessionID=%s, err=%v", job.SessionID, err)
			}
		}
	}
}

// executeJob 单次执行，不做重试
func (o *Orchestrator) executeJob(job *Job) {
	defer func() {
		if r := recover(); r != nil {
			klog.Errorf("Session panic recovered: sessionID=%s, err=%v", job.SessionID, r)
			o.unregisterCancel(job.SessionID)
		}
	}()

	timeout := job.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	ctx, cancel := context.WithTimeout(o.ctx, timeout)
	defer cancel()
	runCtx, manualCancel := context.WithCancel(ctx)
	defer manualCancel()

	o.registerCancel(job.SessionID, manualCancel)
	defer o.unregisterCancel(job.SessionID)

	if err := o.executor.ExecuteSession(runCtx, job.SessionID); err != nil {
		klog.Errorf("会话执行失败: sessionID=%s, err=%v", job.SessionID, err)
		return
	}
	klog.V(6).Infof("Session completed: sessionID=%s", job.SessionID)
}

// -----------------------------
// Queue Status
// -----------------------------
type QueueStatus struct {
	QueueLength   int `json:"queue_length"`
	ActiveWorkers int `json:"active_workers"`
}

func (o *Orchestrator) GetQueueStatus() *QueueStatus {
	return &QueueStatus{
		QueueLength:   o.jobQueue.Len(),
		ActiveWorkers: o.pool.Running(),
	}
}

// -----------------------------
// JobQueue (Ring Buffer) + Reject New
// -----------------------------
type jobQueue struct {
	maxSize int
	items   []*Job
	mutex   sync.Mutex
	cond    *sync.Cond
	closed  bool
}

func newJobQueue(maxSize int) *jobQueue {
	q := &jobQueue{
		maxSize: maxSize,
		items:   make([]*Job, 0, maxSize),
	}
	q.cond = sync.NewCond(&q.mutex)
	return q
}

func (q *jobQueue) Enqueue(job *Job) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.closed {
		return ErrOrchestratorStopped
	}
	if q.maxSize > 0 && len(q.items) >= q.maxSize {
		return ErrQueueFull // Reject New
	}
	q.items = append(q.items, job)
	q.cond.Signal()
	return nil
}

func (q *jobQueue) Dequeue() (*Job, bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	job := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return job, true
}

func (q *jobQueue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.items)
}

// Drain 清空队列，返回被丢弃的任务数
func (q *jobQueue) Drain() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	dropped := len(q.items)
	for i := range q.items {
		q.items[i] = nil
	}
	q.items = q.items[:0]
	return dropped
}

func (q *jobQueue) Close() {
	q.mutex.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mutex.Unlock()
}

// -------------------- Global Orchestrator --------------------
var (
	globalOrchestrator *Orchestrator
	orchestratorOnce   sync.Once
)

func InitGlobalOrchestrator(maxWorkers int, executor SessionExecutor) error {
	var initErr error
	orchestratorOnce.Do(func() {
		orch, err := NewOrchestrator(maxWorkers, executor)
		if err != nil {
			initErr = err
			return
		}
		globalOrchestrator = orch
		globalOrchestrator.Start()
		klog.V(6).Infof("Global orchestrator initialized: maxWorkers=%d", maxWorkers)
	})
	return initErr
}

func GetGlobalOrchestrator() *Orchestrator {
	return globalOrchestrator
}

func ShutdownGlobalOrchestrator() {
	if globalOrchestrator != nil {
		globalOrchestrator.Stop()
	}
}
