// Package cleanup は孤立したスタイリスト掲載情報の定期削除ジョブを提供する。
// プロフィールのロールがstylist・admin以外に変更されたユーザーの
// stylist_profilesを削除する。servicesはCASCADE削除で自動的に処理される。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultInterval はジョブの実行間隔のデフォルト値。
const DefaultInterval = 24 * time.Hour

// OrphanDeleter は孤立した掲載情報の削除インターフェース。
// repository.StylistRepositoryが実装する。
type OrphanDeleter interface {
	DeleteOrphaned(ctx context.Context) (int64, error)
}

// Recorder は削除件数の記録インターフェース。metrics.Collectorが実装する。
type Recorder interface {
	RecordCleanupDeleted(count int64)
}

// CleanupJob は孤立した掲載情報の削除ジョブ。
// 削除対象がない場合もエラーにならないため、何度実行してもよい。
type CleanupJob struct {
	stylists OrphanDeleter
	logger   *slog.Logger
	recorder Recorder
	Interval time.Duration // 実行間隔（デフォルト: 24時間）
}

// NewCleanupJob は新しいCleanupJobを生成する。recorderはnilでもよい。
func NewCleanupJob(stylists OrphanDeleter, logger *slog.Logger, recorder Recorder) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		stylists: stylists,
		logger:   logger,
		recorder: recorder,
		Interval: DefaultInterval,
	}
}

// Run は孤立した掲載情報を1回削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deletedCount, err := j.stylists.DeleteOrphaned(ctx)
	if err != nil {
		j.logger.Error("掲載情報クリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("掲載情報クリーンアップの実行に失敗: %w", err)
	}

	if j.recorder != nil {
		j.recorder.RecordCleanupDeleted(deletedCount)
	}

	duration := time.Since(start)
	j.logger.Info("掲載情報クリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	return nil
}

// Start は起動直後に1回実行し、以降はIntervalごとに実行する。
// ctxがキャンセルされるまでブロックする。実行失敗は記録のみ行い、ジョブは継続する。
func (j *CleanupJob) Start(ctx context.Context) {
	interval := j.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	_ = j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("掲載情報クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
