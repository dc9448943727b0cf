package catalog

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const (
	styleFace = "face"
	styleHair = "hair"
)

// PostgresStore serves catalogs from PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS npc_shop_items (
			npc_id INTEGER NOT NULL,
			position INTEGER NOT NULL,
			item_id INTEGER NOT NULL,
			price INTEGER NOT NULL,
			PRIMARY KEY (npc_id, position)
		);`,
		`CREATE TABLE IF NOT EXISTS npc_storage (
			npc_id INTEGER PRIMARY KEY,
			deposit_cost INTEGER NOT NULL,
			withdraw_cost INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS beauty_styles (
			gender SMALLINT NOT NULL,
			kind TEXT NOT NULL,
			style_id INTEGER NOT NULL,
			PRIMARY KEY (gender, kind, style_id)
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return errors.Wrapf(err, "init schema failed on %q", stmt)
		}
	}
	return nil
}

func (s *PostgresStore) ShopByNPC(ctx context.Context, npcID int32) (Shop, bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT item_id, price FROM npc_shop_items WHERE npc_id=$1 ORDER BY position`,
		npcID,
	)
	if err != nil {
		return Shop{}, false, errors.Wrap(err, "query shop")
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ShopItem, error) {
		var it ShopItem
		err := row.Scan(&it.ItemID, &it.Price)
		return it, err
	})
	if err != nil {
		return Shop{}, false, errors.Wrap(err, "scan shop rows")
	}
	if len(items) == 0 {
		return Shop{}, false, nil
	}
	return Shop{NPCID: npcID, Items: items}, true, nil
}

func (s *PostgresStore) StorageByNPC(ctx context.Context, npcID int32) (StorageKeeper, bool, error) {
	k := StorageKeeper{NPCID: npcID}
	err := s.pool.QueryRow(ctx,
		`SELECT deposit_cost, withdraw_cost FROM npc_storage WHERE npc_id=$1`,
		npcID,
	).Scan(&k.DepositCost, &k.WithdrawCost)
	if errors.Is(err, pgx.ErrNoRows) {
		return StorageKeeper{}, false, nil
	}
	if err != nil {
		return StorageKeeper{}, false, errors.Wrap(err, "query storage keeper")
	}
	return k, true, nil
}

func (s *PostgresStore) Faces(ctx context.Context, gender Gender) ([]int32, error) {
	return s.styles(ctx, gender, styleFace)
}

func (s *PostgresStore) Hairs(ctx context.Context, gender Gender) ([]int32, error) {
	return s.styles(ctx, gender, styleHair)
}

func (s *PostgresStore) styles(ctx context.Context, gender Gender, kind string) ([]int32, error) {
	if gender != GenderMale && gender != GenderFemale {
		return nil, errors.Wrapf(ErrUnknownGender, "gender %d", gender)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT style_id FROM beauty_styles WHERE gender=$1 AND kind=$2 ORDER BY style_id`,
		int16(gender), kind,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "query %s styles", kind)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int32])
	if err != nil {
		return nil, errors.Wrapf(err, "scan %s styles", kind)
	}
	return ids, nil
}

// Seed replaces every catalog table with data in one transaction.
func (s *PostgresStore) Seed(ctx context.Context, data Data) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM npc_shop_items`,
			`DELETE FROM npc_storage`,
			`DELETE FROM beauty_styles`,
		} {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return errors.Wrapf(err, "seed: %s", stmt)
			}
		}

		batch := &pgx.Batch{}
		for _, shop := range data.Shops {
			for i, it := range shop.Items {
				batch.Queue(`INSERT INTO npc_shop_items (npc_id, position, item_id, price) VALUES ($1, $2, $3, $4)`,
					shop.NPCID, i, it.ItemID, it.Price)
			}
		}
		for _, k := range data.Storage {
			batch.Queue(`INSERT INTO npc_storage (npc_id, deposit_cost, withdraw_cost) VALUES ($1, $2, $3)`,
				k.NPCID, k.DepositCost, k.WithdrawCost)
		}
		queueStyles(batch, GenderMale, data.Male)
		queueStyles(batch, GenderFemale, data.Female)

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrap(err, "seed catalog rows")
		}
		return nil
	})
}

func queueStyles(batch *pgx.Batch, gender Gender, b BeautyStyles) {
	const stmt = `INSERT INTO beauty_styles (gender, kind, style_id) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`
	for _, id := range b.Faces {
		batch.Queue(stmt, int16(gender), styleFace, id)
	}
	for _, id := range b.Hairs {
		batch.Queue(stmt, int16(gender), styleHair, id)
	}
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
