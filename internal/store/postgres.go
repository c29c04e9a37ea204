package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) ReadOnly() bool {
	return false
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, role, created_at, updated_at
		FROM users
		WHERE LOWER(email) = LOWER($1)
	`, email).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, role, created_at, updated_at
		FROM users
		WHERE id = $1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

// UpsertUser creates the account or replaces its name, password hash and role.
func (s *PostgresStore) UpsertUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE
		SET display_name = EXCLUDED.display_name,
			password_hash = EXCLUDED.password_hash,
			role = EXCLUDED.role,
			updated_at = NOW()
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash, user.Role)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash string, user User, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, user.ID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

// ConsumeRefreshSession revokes a live refresh token and returns its owner.
// A token already revoked or expired yields ErrNotFound.
func (s *PostgresStore) ConsumeRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		WITH consumed AS (
			UPDATE refresh_sessions SET revoked_at = NOW()
			WHERE token_hash = $1
				AND revoked_at IS NULL
				AND expires_at > NOW()
			RETURNING user_id
		)
		SELECT u.id, u.display_name, u.email, u.role
		FROM consumed
		JOIN users u ON u.id = consumed.user_id
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.DisplayName, &user.Email, &user.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("refresh session: %w", ErrNotFound)
	}
	if err != nil {
		return User{}, fmt.Errorf("consume refresh session: %w", err)
	}
	return user, nil
}

const pageColumns = `id, title, layout, column_widths, sort_order, created_at, updated_at`

func scanPage(row interface{ Scan(...any) error }) (Page, error) {
	var (
		page   Page
		widths []byte
		order  sql.NullFloat64
		layout string
	)
	if err := row.Scan(&page.ID, &page.Title, &layout, &widths, &order, &page.CreatedAt, &page.UpdatedAt); err != nil {
		return Page{}, err
	}
	page.Layout = LayoutKind(layout)
	if order.Valid {
		page.Order = Float(order.Float64)
	}
	if len(widths) > 0 && string(widths) != "null" {
		if err := json.Unmarshal(widths, &page.ColumnWidths); err != nil {
			return Page{}, fmt.Errorf("decode column widths: %w", err)
		}
	}
	return page, nil
}

func (s *PostgresStore) ListPages(ctx context.Context) ([]Page, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+pageColumns+` FROM pages ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	items := make([]Page, 0)
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		items = append(items, page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetPage(ctx context.Context, pageID string) (Page, error) {
	page, err := scanPage(s.db.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM pages WHERE id=$1`, pageID))
	if errors.Is(err, sql.ErrNoRows) {
		return Page{}, fmt.Errorf("page %s: %w", pageID, ErrNotFound)
	}
	if err != nil {
		return Page{}, fmt.Errorf("get page: %w", err)
	}
	return page, nil
}

func (s *PostgresStore) InsertPage(ctx context.Context, page Page) error {
	widths, err := encodeWidths(page.ColumnWidths)
	if err != nil {
		return err
	}
	var order sql.NullFloat64
	if page.Order != nil {
		order = sql.NullFloat64{Float64: *page.Order, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pages (id, title, layout, column_widths, sort_order)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, page.ID, page.Title, string(page.Layout), widths, order)
	if err != nil {
		return fmt.Errorf("insert page: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetColumnWidths(ctx context.Context, pageID string, widths []float64) error {
	encoded, err := encodeWidths(widths)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE pages SET column_widths=$2, updated_at=NOW() WHERE id=$1`, pageID, encoded)
	if err != nil {
		return fmt.Errorf("set column widths: %w", err)
	}
	return requireAffected(res, fmt.Sprintf("page %s", pageID))
}

const blockColumns = `id, page_id, type, sort_order, column_index, class_name, content, height`

func scanBlock(row interface{ Scan(...any) error }) (Block, error) {
	var (
		block     Block
		blockType string
		column    sql.NullInt64
	)
	if err := row.Scan(&block.ID, &block.PageID, &blockType, &block.Order, &column, &block.ClassName, &block.Content, &block.Height); err != nil {
		return Block{}, err
	}
	block.Type = BlockType(blockType)
	if column.Valid {
		block.Column = Int(int(column.Int64))
	}
	return block, nil
}

func (s *PostgresStore) ListBlocks(ctx context.Context, pageID string) ([]Block, error) {
	if _, err := s.GetPage(ctx, pageID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+blockColumns+` FROM blocks WHERE page_id=$1 ORDER BY sort_order ASC, id ASC`, pageID)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()

	items := make([]Block, 0)
	for rows.Next() {
		block, err := scanBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		items = append(items, block)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocks: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetBlock(ctx context.Context, pageID, blockID string) (Block, error) {
	block, err := scanBlock(s.db.QueryRowContext(ctx, `SELECT `+blockColumns+` FROM blocks WHERE page_id=$1 AND id=$2`, pageID, blockID))
	if errors.Is(err, sql.ErrNoRows) {
		return Block{}, fmt.Errorf("block %s/%s: %w", pageID, blockID, ErrNotFound)
	}
	if err != nil {
		return Block{}, fmt.Errorf("get block: %w", err)
	}
	return block, nil
}

func (s *PostgresStore) InsertBlock(ctx context.Context, block Block) error {
	var column sql.NullInt64
	if block.Column != nil {
		column = sql.NullInt64{Int64: int64(*block.Column), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blocks (id, page_id, type, sort_order, column_index, class_name, content, height)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, block.ID, block.PageID, string(block.Type), block.Order, column, block.ClassName, block.Content, block.Height)
	if err != nil {
		return fmt.Errorf("insert block: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateBlock(ctx context.Context, pageID, blockID string, patch BlockPatch) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE blocks
		SET content = COALESCE($3, content),
			height = COALESCE($4, height),
			class_name = COALESCE($5, class_name),
			updated_at = NOW()
		WHERE page_id=$1 AND id=$2
	`, pageID, blockID, patch.Content, patch.Height, patch.ClassName)
	if err != nil {
		return fmt.Errorf("update block: %w", err)
	}
	return requireAffected(res, fmt.Sprintf("block %s/%s", pageID, blockID))
}

// Commit runs every write of batch inside one transaction.
func (s *PostgresStore) Commit(ctx context.Context, batch *Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch tx: %w", err)
	}
	for i, op := range batch.ops {
		if err := applyOp(ctx, tx, op); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply batch write %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w: %w", ErrCommitUncertain, err)
	}
	return nil
}

func applyOp(ctx context.Context, tx *sql.Tx, op batchOp) error {
	var (
		res    sql.Result
		err    error
		target string
	)
	switch op.kind {
	case opSetBlockOrder:
		target = fmt.Sprintf("block %s/%s", op.pageID, op.blockID)
		res, err = tx.ExecContext(ctx, `UPDATE blocks SET sort_order=$3, updated_at=NOW() WHERE page_id=$1 AND id=$2`, op.pageID, op.blockID, op.order)
	case opSetBlockPlacement:
		target = fmt.Sprintf("block %s/%s", op.pageID, op.blockID)
		res, err = tx.ExecContext(ctx, `UPDATE blocks SET column_index=$3, sort_order=$4, updated_at=NOW() WHERE page_id=$1 AND id=$2`, op.pageID, op.blockID, op.column, op.order)
	case opSetBlockColumn:
		target = fmt.Sprintf("block %s/%s", op.pageID, op.blockID)
		res, err = tx.ExecContext(ctx, `UPDATE blocks SET column_index=$3, updated_at=NOW() WHERE page_id=$1 AND id=$2`, op.pageID, op.blockID, op.column)
	case opSetPageOrder:
		target = fmt.Sprintf("page %s", op.pageID)
		res, err = tx.ExecContext(ctx, `UPDATE pages SET sort_order=$2, updated_at=NOW() WHERE id=$1`, op.pageID, op.order)
	case opSetPageLayout:
		target = fmt.Sprintf("page %s", op.pageID)
		res, err = tx.ExecContext(ctx, `UPDATE pages SET title=$2, layout=$3, updated_at=NOW() WHERE id=$1`, op.pageID, op.title, string(op.layout))
	case opDeleteBlock:
		target = fmt.Sprintf("block %s/%s", op.pageID, op.blockID)
		res, err = tx.ExecContext(ctx, `DELETE FROM blocks WHERE page_id=$1 AND id=$2`, op.pageID, op.blockID)
	case opDeletePage:
		target = fmt.Sprintf("page %s", op.pageID)
		res, err = tx.ExecContext(ctx, `DELETE FROM pages WHERE id=$1`, op.pageID)
	default:
		return fmt.Errorf("unknown batch write kind %d", op.kind)
	}
	if err != nil {
		return err
	}
	return requireAffected(res, target)
}

func (s *PostgresStore) GetResume(ctx context.Context) (json.RawMessage, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM resumes WHERE id=$1`, ResumeID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("resume: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get resume: %w", err)
	}
	return json.RawMessage(data), nil
}

func (s *PostgresStore) SaveResume(ctx context.Context, data json.RawMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resumes (id, data)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data, updated_at=NOW()
	`, ResumeID, []byte(data))
	if err != nil {
		return fmt.Errorf("save resume: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertMessage(ctx context.Context, message Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, email, message, created_at)
		VALUES ($1, $2, $3, $4)
	`, message.ID, message.Email, message.Message, message.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListMessages(ctx context.Context) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, email, message, created_at FROM messages ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	items := make([]Message, 0)
	for rows.Next() {
		var item Message
		if err := rows.Scan(&item.ID, &item.Email, &item.Message, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteMessage(ctx context.Context, messageID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id=$1`, messageID)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return requireAffected(res, fmt.Sprintf("message %s", messageID))
}

func (s *PostgresStore) Snapshot(ctx context.Context) (SiteSnapshot, error) {
	return BuildSnapshot(ctx, s)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func encodeWidths(widths []float64) ([]byte, error) {
	if widths == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(widths)
	if err != nil {
		return nil, fmt.Errorf("encode column widths: %w", err)
	}
	return encoded, nil
}

func requireAffected(res sql.Result, target string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", target, ErrNotFound)
	}
	return nil
}
