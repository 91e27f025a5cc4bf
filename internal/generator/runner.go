package generator

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"povgallery/internal/entity"
	"povgallery/internal/gallery"
	"povgallery/internal/llm"
	"povgallery/internal/model"

	"github.com/sirupsen/logrus"
)

const (
	// batchTimeout 单个批次请求的上限时长
	batchTimeout = 10 * time.Minute
	// maxEmptyBatches 连续空批次达到该值按生成失败处理，避免循环静默卡住
	maxEmptyBatches = 3
)

// 推送给展示层的事件名
const (
	EventBatchCompleted      = "batch_completed"
	EventGenerationCompleted = "generation_completed"
	EventGenerationFailed    = "generation_failed"
)

// NotifyFunc 进度通知回调（由调用方设置，用于 SSE 推送）
type NotifyFunc func(event string, payload map[string]interface{})

// Runner 批量生成控制器。
//
// 以固定批次把集合从当前规模推进到目标规模：同一时刻至多一个批次在途，
// 下一批次仅在上一批次的结果（成功或失败）被观察到之后发起。停止信号在
// 每个批次发起前检查；在途批次不会被打断，其成功结果仍会入库，但之后
// 不再发起新批次。单次失败即停机，不做自动重试。
type Runner struct {
	mu         sync.Mutex
	collection *gallery.Collection
	source     llm.SceneSource
	repo       model.Repository
	notify     NotifyFunc
	rng        *rand.Rand

	batchSize int
	goal      int

	active      bool
	cancelled   bool
	loopRunning bool
	stats       entity.GenerationStats
	emptyStreak int
	tickerStop  chan struct{}
}

// NewRunner 创建批量生成控制器。repo 可以为 nil（纯内存运行）。
func NewRunner(collection *gallery.Collection, source llm.SceneSource, repo model.Repository) *Runner {
	return &Runner{
		collection: collection,
		source:     source,
		repo:       repo,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		batchSize:  entity.BatchSize,
		goal:       entity.TotalGoal,
	}
}

// SetNotifyFunc 设置进度通知回调
func (r *Runner) SetNotifyFunc(fn NotifyFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notify = fn
}

// SetSource 替换场景内容源（仅在循环未激活时生效）
func (r *Runner) SetSource(source llm.SceneSource) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active || source == nil {
		return false
	}
	r.source = source
	return true
}

// Start 激活生成循环。
//
// 凭证不可用时直接返回 ErrMissingCredential，循环不会被激活。
// 集合为空时清零统计并记录启动时间；非空时保留计数（续跑）。
// 已激活时幂等返回。
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active {
		return nil
	}
	if err := r.source.Ready(); err != nil {
		return err
	}

	if r.collection.Len() == 0 {
		r.stats = entity.GenerationStats{StartedAt: time.Now().UTC()}
	}
	r.active = true
	r.cancelled = false
	r.emptyStreak = 0
	r.stats.IsGenerating = true

	stop := make(chan struct{})
	r.tickerStop = stop
	go r.tick(stop)

	if !r.loopRunning {
		r.loopRunning = true
		go r.run()
	}

	logrus.WithFields(logrus.Fields{
		"collection_size": r.collection.Len(),
		"goal":            r.goal,
		"batch_size":      r.batchSize,
	}).Info("generation_started")
	return nil
}

// Stop 发出停止信号并立即冻结统计。
// 在途批次不受影响，其结果照常入库，但之后不再发起新批次。
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelled = true
	if r.active {
		r.deactivateLocked()
		logrus.WithField("collection_size", r.collection.Len()).Info("generation_stopped")
	}
}

// Stats 返回当前统计快照
func (r *Runner) Stats() entity.GenerationStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// deactivateLocked 停止计时并摘下激活标记，调用方必须持有 r.mu
func (r *Runner) deactivateLocked() {
	r.active = false
	r.stats.IsGenerating = false
	if r.tickerStop != nil {
		close(r.tickerStop)
		r.tickerStop = nil
	}
}

// tick 每秒递增一次累计耗时，循环转入非激活的瞬间停止
func (r *Runner) tick(stop chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.mu.Lock()
			if r.active {
				r.stats.ElapsedSeconds++
			}
			r.mu.Unlock()
		}
	}
}

// run 批次链：每轮发起一个批次，观察到结果后决定续发或退出。
func (r *Runner) run() {
	for {
		r.mu.Lock()
		if !r.active || r.cancelled {
			r.loopRunning = false
			r.mu.Unlock()
			return
		}

		size := r.collection.Len()
		if size >= r.goal {
			r.deactivateLocked()
			r.loopRunning = false
			notify := r.notify
			stats := r.stats
			r.mu.Unlock()

			logrus.WithField("total_generated", stats.TotalGenerated).Info("generation_completed")
			emit(notify, EventGenerationCompleted, map[string]interface{}{
				"total_generated": stats.TotalGenerated,
			})
			return
		}

		remaining := r.goal - size
		requestSize := r.batchSize
		if remaining < requestSize {
			requestSize = remaining
		}
		req := llm.GenerateScenesRequest{
			StartID:    uint(size) + 1,
			Count:      requestSize,
			Categories: r.sampleCategoriesLocked(),
		}
		source := r.source
		r.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
		drafts, err := source.GenerateScenes(ctx, req)
		cancel()

		if err != nil {
			r.failRun(err)
			return
		}

		scenes := draftsToScenes(drafts)
		r.collection.Append(scenes)
		r.persist(scenes)

		r.mu.Lock()
		r.stats.TotalGenerated += len(scenes)
		r.stats.CompletedBatches++
		if len(scenes) == 0 {
			r.emptyStreak++
		} else {
			r.emptyStreak = 0
		}
		emptyStalled := r.emptyStreak >= maxEmptyBatches
		wasCancelled := r.cancelled
		notify := r.notify
		stats := r.stats
		if wasCancelled || emptyStalled {
			r.loopRunning = false
			if emptyStalled {
				r.cancelled = true
				r.deactivateLocked()
			}
		}
		r.mu.Unlock()

		logrus.WithFields(logrus.Fields{
			"batch":           stats.CompletedBatches,
			"batch_count":     len(scenes),
			"total_generated": stats.TotalGenerated,
		}).Info("generation_batch_completed")
		emit(notify, EventBatchCompleted, map[string]interface{}{
			"batch":           stats.CompletedBatches,
			"count":           len(scenes),
			"total_generated": stats.TotalGenerated,
		})

		if emptyStalled {
			logrus.Warn("generation_stalled_on_empty_batches")
			emit(notify, EventGenerationFailed, map[string]interface{}{
				"error": "content source returned no records repeatedly",
			})
			return
		}
		if wasCancelled {
			return
		}
	}
}

// failRun 批次失败：拉起停止信号、冻结循环并恰好发出一次失败通知
func (r *Runner) failRun(err error) {
	r.mu.Lock()
	r.cancelled = true
	r.loopRunning = false
	r.deactivateLocked()
	notify := r.notify
	r.mu.Unlock()

	logrus.WithError(err).Error("generation_batch_failed")
	emit(notify, EventGenerationFailed, map[string]interface{}{
		"error": err.Error(),
	})
}

// sampleCategoriesLocked 从全集无放回抽取目标分类子集，调用方必须持有 r.mu
func (r *Runner) sampleCategoriesLocked() []string {
	sampleSize := entity.CategorySampleSize
	if sampleSize > len(entity.SceneCategories) {
		sampleSize = len(entity.SceneCategories)
	}
	picked := make([]string, 0, sampleSize)
	for _, idx := range r.rng.Perm(len(entity.SceneCategories))[:sampleSize] {
		picked = append(picked, entity.SceneCategories[idx])
	}
	return picked
}

// persist 把新批次同步到仓库；持久化失败只告警，不影响循环语义
func (r *Runner) persist(scenes []entity.Scene) {
	if r.repo == nil || len(scenes) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.repo.CreateScenes(ctx, scenes); err != nil {
		logrus.WithError(err).WithField("count", len(scenes)).Warn("failed to persist scene batch")
	}
}

func draftsToScenes(drafts []llm.SceneDraft) []entity.Scene {
	scenes := make([]entity.Scene, 0, len(drafts))
	now := time.Now().UTC()
	for _, draft := range drafts {
		scenes = append(scenes, entity.Scene{
			ID:           draft.ID,
			Description:  draft.Description,
			Category:     draft.Category,
			Lighting:     draft.Lighting,
			Camera:       draft.Camera,
			ThumbnailURL: draft.ThumbnailURL,
			CreatedAt:    now,
		})
	}
	return scenes
}

func emit(notify NotifyFunc, event string, payload map[string]interface{}) {
	if notify == nil {
		return
	}
	notify(event, payload)
}
