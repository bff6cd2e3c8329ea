package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/betbot/spreadbot/internal/domain"
)

var log = logrus.WithField("component", "store")

const schema = `
CREATE TABLE IF NOT EXISTS positions (
    id              TEXT PRIMARY KEY,
    tier            TEXT NOT NULL,
    asset           TEXT NOT NULL,
    window_key      TEXT NOT NULL,
    direction       TEXT NOT NULL,
    limit_pips      INTEGER NOT NULL,
    size_usd        REAL NOT NULL,
    shares          REAL NOT NULL,
    order_id        TEXT,
    spread_at_entry REAL NOT NULL,
    entered_at      DATETIME NOT NULL,
    outcome         TEXT NOT NULL DEFAULT '',
    pnl_cents       INTEGER NOT NULL DEFAULT 0,
    resolved_at     DATETIME
);

CREATE TABLE IF NOT EXISTS risk_state (
    id                 INTEGER PRIMARY KEY CHECK (id = 1),
    bankroll_cents     INTEGER NOT NULL,
    max_bankroll_cents INTEGER NOT NULL,
    consecutive_losses INTEGER NOT NULL,
    cooldown_until     DATETIME,
    updated_at         DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS tier_config (
    asset      TEXT PRIMARY KEY,
    payload    TEXT NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS control (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_positions_window ON positions(window_key);
CREATE INDEX IF NOT EXISTS idx_positions_entered ON positions(entered_at DESC);
`

const pauseKey = "emergency_pause"

// Store sqlite 持久层：持仓日志、风控快照、档位配置与紧急暂停开关。
//
// 交易路径上的所有调用都是 best-effort：写失败记日志不阻塞；
// 配置读取走内存缓存，刷新失败时沿用上一次成功的配置。
type Store struct {
	db *sql.DB

	mu          sync.RWMutex
	cachedTiers map[string]domain.TierTable
	cachedPause bool
}

// Open 打开（或创建）数据库并应用 schema
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "打开数据库失败: %s", path)
	}
	// sqlite 单写者
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "应用 schema 失败")
	}

	s := &Store{
		db:          db,
		cachedTiers: make(map[string]domain.TierTable),
	}
	if err := s.Refresh(context.Background()); err != nil {
		log.Warnf("⚠️ 初次加载配置失败: %v", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// SavePosition 写入/更新持仓记录（结算后覆盖同一行）
func (s *Store) SavePosition(pos *domain.Position) error {
	_, err := s.db.Exec(`
		INSERT INTO positions
			(id, tier, asset, window_key, direction, limit_pips, size_usd, shares,
			 order_id, spread_at_entry, entered_at, outcome, pnl_cents, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			outcome = excluded.outcome,
			pnl_cents = excluded.pnl_cents,
			resolved_at = excluded.resolved_at`,
		pos.ID, pos.Tier, pos.Asset, pos.WindowKey, string(pos.Direction),
		pos.Limit.Pips, pos.Size, pos.Shares, pos.OrderID,
		pos.SignedSpreadAtEntry, pos.EnteredAt, string(pos.Outcome),
		pos.PnLCents, pos.ResolvedAt)
	return errors.Wrap(err, "写入持仓失败")
}

// SaveRisk 覆盖式保存风控快照
func (s *Store) SaveRisk(risk domain.RiskState) error {
	_, err := s.db.Exec(`
		INSERT INTO risk_state
			(id, bankroll_cents, max_bankroll_cents, consecutive_losses, cooldown_until, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			bankroll_cents = excluded.bankroll_cents,
			max_bankroll_cents = excluded.max_bankroll_cents,
			consecutive_losses = excluded.consecutive_losses,
			cooldown_until = excluded.cooldown_until,
			updated_at = excluded.updated_at`,
		risk.BankrollCents, risk.MaxBankrollCents, risk.ConsecutiveLosses,
		risk.CooldownUntil, time.Now())
	return errors.Wrap(err, "写入风控状态失败")
}

// LoadRisk 读取风控快照（无记录时返回零值）
func (s *Store) LoadRisk() (domain.RiskState, error) {
	var risk domain.RiskState
	var cooldown sql.NullTime
	err := s.db.QueryRow(`
		SELECT bankroll_cents, max_bankroll_cents, consecutive_losses, cooldown_until
		FROM risk_state WHERE id = 1`).
		Scan(&risk.BankrollCents, &risk.MaxBankrollCents, &risk.ConsecutiveLosses, &cooldown)
	if err == sql.ErrNoRows {
		return domain.RiskState{}, nil
	}
	if err != nil {
		return domain.RiskState{}, errors.Wrap(err, "读取风控状态失败")
	}
	if cooldown.Valid {
		risk.CooldownUntil = cooldown.Time
	}
	return risk, nil
}

// UpsertTierConfig 写入资产的档位表（JSON 载荷）
func (s *Store) UpsertTierConfig(asset string, tiers domain.TierTable) error {
	if err := tiers.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(tiers)
	if err != nil {
		return errors.Wrap(err, "序列化档位表失败")
	}
	_, err = s.db.Exec(`
		INSERT INTO tier_config (asset, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(asset) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		asset, string(payload), time.Now())
	if err != nil {
		return errors.Wrap(err, "写入档位配置失败")
	}
	return s.Refresh(context.Background())
}

// SetPaused 设置紧急暂停开关（立即生效，同时刷新缓存）
func (s *Store) SetPaused(paused bool) error {
	v := "0"
	if paused {
		v = "1"
	}
	_, err := s.db.Exec(`
		INSERT INTO control (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		pauseKey, v)
	if err != nil {
		return errors.Wrap(err, "写入暂停开关失败")
	}
	s.mu.Lock()
	s.cachedPause = paused
	s.mu.Unlock()
	return nil
}

// Refresh 重新加载档位配置与暂停开关。
// 任一步失败时保留旧缓存——配置刷新失败不能让交易停摆。
func (s *Store) Refresh(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT asset, payload FROM tier_config`)
	if err != nil {
		return errors.Wrap(err, "读取档位配置失败")
	}
	defer rows.Close()

	fresh := make(map[string]domain.TierTable)
	for rows.Next() {
		var asset, payload string
		if err := rows.Scan(&asset, &payload); err != nil {
			return errors.Wrap(err, "扫描档位配置失败")
		}
		var tiers domain.TierTable
		if err := json.Unmarshal([]byte(payload), &tiers); err != nil {
			log.Warnf("⚠️ 档位配置解析失败，跳过: asset=%s err=%v", asset, err)
			continue
		}
		fresh[asset] = tiers
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "遍历档位配置失败")
	}

	var pauseVal string
	paused := false
	err = s.db.QueryRowContext(ctx, `SELECT value FROM control WHERE key = ?`, pauseKey).Scan(&pauseVal)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return errors.Wrap(err, "读取暂停开关失败")
	default:
		paused = pauseVal == "1"
	}

	s.mu.Lock()
	if len(fresh) > 0 {
		s.cachedTiers = fresh
	}
	s.cachedPause = paused
	s.mu.Unlock()
	return nil
}

// RunRefresh 周期性刷新配置缓存（失败仅记日志）
func (s *Store) RunRefresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				log.Warnf("⚠️ 配置刷新失败，沿用缓存: %v", err)
			}
		}
	}
}

// TierTable 当前缓存中的档位表（engine.ConfigSource）
func (s *Store) TierTable(asset string) (domain.TierTable, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tiers, ok := s.cachedTiers[asset]
	return tiers, ok
}

// IsPaused 紧急暂停开关（engine.ConfigSource）
func (s *Store) IsPaused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cachedPause
}

// RecentPositions 最近 n 条持仓记录（状态页/TUI 用）
func (s *Store) RecentPositions(n int) ([]*domain.Position, error) {
	if n <= 0 {
		n = 50
	}
	rows, err := s.db.Query(`
		SELECT id, tier, asset, window_key, direction, limit_pips, size_usd, shares,
		       order_id, spread_at_entry, entered_at, outcome, pnl_cents, resolved_at
		FROM positions ORDER BY entered_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, errors.Wrap(err, "查询持仓失败")
	}
	defer rows.Close()
	return scanPositions(rows)
}

// UnresolvedPositions 尚未结算的持仓，按窗口分组。
// 进程重启后把这些窗口重新交给结算器，持仓不会因重启丢结算。
func (s *Store) UnresolvedPositions() (map[string][]*domain.Position, error) {
	rows, err := s.db.Query(`
		SELECT id, tier, asset, window_key, direction, limit_pips, size_usd, shares,
		       order_id, spread_at_entry, entered_at, outcome, pnl_cents, resolved_at
		FROM positions WHERE resolved_at IS NULL ORDER BY entered_at`)
	if err != nil {
		return nil, errors.Wrap(err, "查询未结算持仓失败")
	}
	defer rows.Close()

	list, err := scanPositions(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]*domain.Position)
	for _, pos := range list {
		out[pos.WindowKey] = append(out[pos.WindowKey], pos)
	}
	return out, nil
}

func scanPositions(rows *sql.Rows) ([]*domain.Position, error) {
	var out []*domain.Position
	for rows.Next() {
		var pos domain.Position
		var direction, outcome string
		var orderID sql.NullString
		var resolvedAt sql.NullTime
		if err := rows.Scan(&pos.ID, &pos.Tier, &pos.Asset, &pos.WindowKey,
			&direction, &pos.Limit.Pips, &pos.Size, &pos.Shares, &orderID,
			&pos.SignedSpreadAtEntry, &pos.EnteredAt, &outcome, &pos.PnLCents,
			&resolvedAt); err != nil {
			return nil, errors.Wrap(err, "扫描持仓失败")
		}
		pos.Direction = domain.Direction(direction)
		pos.Outcome = domain.Outcome(outcome)
		pos.OrderID = orderID.String
		if resolvedAt.Valid {
			t := resolvedAt.Time
			pos.ResolvedAt = &t
		}
		out = append(out, &pos)
	}
	return out, rows.Err()
}
