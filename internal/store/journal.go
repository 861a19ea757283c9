package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"tradeduel/internal/logger"
	"tradeduel/internal/simulation"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DecisionRecord 是一条决策流水，只写不读回模拟状态。
type DecisionRecord struct {
	ID        int64          `gorm:"column:id;primaryKey;autoIncrement"`
	RunID     string         `gorm:"column:run_id;index"`
	Index     int            `gorm:"column:idx"`
	CandleTS  int64          `gorm:"column:candle_ts"`
	Agent     string         `gorm:"column:agent;index"`
	Action    string         `gorm:"column:action"`
	Amount    int            `gorm:"column:amount"`
	Executed  int            `gorm:"column:executed"`
	Price     float64        `gorm:"column:price"`
	Cost      float64        `gorm:"column:cost"`
	Source    string         `gorm:"column:source"`
	Reason    string         `gorm:"column:reason"`
	Message   string         `gorm:"column:message"`
	Cash      float64        `gorm:"column:cash"`
	Shares    int            `gorm:"column:shares"`
	Value     float64        `gorm:"column:value"`
	Candle    datatypes.JSON `gorm:"column:candle"`
	CreatedAt int64          `gorm:"column:created_at"`
}

func (DecisionRecord) TableName() string { return "decision_records" }

// RunResult 记录一场比赛的结算。
type RunResult struct {
	RunID      string         `gorm:"column:run_id;primaryKey"`
	Winner     string         `gorm:"column:winner"`
	WinnerVal  float64        `gorm:"column:winner_value"`
	FinalPrice float64        `gorm:"column:final_price"`
	Standings  datatypes.JSON `gorm:"column:standings"`
	FinishedAt int64          `gorm:"column:finished_at"`
}

func (RunResult) TableName() string { return "run_results" }

// Journal appends driver events to SQLite through gorm. Write failures are
// logged and never reach the simulation.
type Journal struct {
	db  *gorm.DB
	now func() time.Time
}

var _ simulation.Observer = (*Journal)(nil)

func OpenJournal(path string) (*Journal, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("journal: 路径不能为空")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&DecisionRecord{}, &RunResult{}); err != nil {
		return nil, fmt.Errorf("journal migrate: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return &Journal{db: db, now: time.Now}, nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (j *Journal) OnStep(ev simulation.StepEvent) {
	candle, _ := json.Marshal(ev.Candle)
	rec := DecisionRecord{
		RunID:     ev.RunID,
		Index:     ev.Index,
		CandleTS:  ev.Candle.Timestamp,
		Agent:     ev.Agent.ID,
		Action:    string(ev.Outcome.Action),
		Amount:    ev.Outcome.Amount,
		Executed:  ev.Fill.Executed,
		Price:     ev.Fill.Price,
		Cost:      ev.Fill.Cost,
		Source:    string(ev.Outcome.Source),
		Reason:    ev.Outcome.Reason,
		Message:   ev.Outcome.Message,
		Cash:      ev.Cash,
		Shares:    ev.Shares,
		Value:     ev.Value,
		Candle:    datatypes.JSON(candle),
		CreatedAt: j.now().UnixMilli(),
	}
	if err := j.db.Create(&rec).Error; err != nil {
		logger.Warnf("journal: write decision failed: %v", err)
	}
}

func (j *Journal) OnFinish(res simulation.Results) {
	standings, _ := json.Marshal(res.Standings)
	rec := RunResult{
		RunID:      res.RunID,
		Winner:     res.Winner.ID,
		WinnerVal:  res.Winner.Value,
		FinalPrice: res.FinalPrice,
		Standings:  datatypes.JSON(standings),
		FinishedAt: j.now().UnixMilli(),
	}
	if err := j.db.Save(&rec).Error; err != nil {
		logger.Warnf("journal: write result failed: %v", err)
	}
}

// OnReset needs no write: the next step carries the new run id.
func (j *Journal) OnReset(string) {}

// Decisions lists one run's records in insertion order.
func (j *Journal) Decisions(ctx context.Context, runID string) ([]DecisionRecord, error) {
	var out []DecisionRecord
	err := j.db.WithContext(ctx).Where("run_id = ?", runID).Order("id ASC").Find(&out).Error
	return out, err
}

func (j *Journal) Result(ctx context.Context, runID string) (RunResult, error) {
	var out RunResult
	err := j.db.WithContext(ctx).Where("run_id = ?", runID).First(&out).Error
	return out, err
}
