package cubecache

import (
	"context"
	"database/sql"
	"errors"

	"crime-hotspots/internal/cube"
)

// 文档注释：Postgres 制品存储（_cube_artifacts）
// 背景：与事件表同库存放，便于备份与按 created_at 做保留策略；表结构由 migrate.EnsureSchema 创建。
// 约束：ON CONFLICT DO NOTHING 保证同键不可变。
type Postgres struct {
	DB *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{DB: db} }

func (p *Postgres) Has(ctx context.Context, name string) (bool, error) {
	var ok bool
	err := p.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM _cube_artifacts WHERE name = $1)`, name).Scan(&ok)
	return ok, err
}

func (p *Postgres) Get(ctx context.Context, name string) ([]byte, error) {
	var b []byte
	err := p.DB.QueryRowContext(ctx, `SELECT payload FROM _cube_artifacts WHERE name = $1`, name).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cube.ErrCacheMiss
	}
	return b, err
}

func (p *Postgres) PutIfAbsent(ctx context.Context, name string, b []byte) error {
	_, err := p.DB.ExecContext(ctx, `INSERT INTO _cube_artifacts(name, payload, bytes)
        VALUES($1, $2, $3)
        ON CONFLICT (name) DO NOTHING`, name, b, len(b))
	return err
}

func (p *Postgres) Delete(ctx context.Context, name string) error {
	_, err := p.DB.ExecContext(ctx, `DELETE FROM _cube_artifacts WHERE name = $1`, name)
	return err
}
