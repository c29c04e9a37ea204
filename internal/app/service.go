package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"portfolio/api/internal/auth"
	"portfolio/api/internal/authpw"
	"portfolio/api/internal/config"
	"portfolio/api/internal/email"
	"portfolio/api/internal/export"
	"portfolio/api/internal/history"
	"portfolio/api/internal/layout"
	"portfolio/api/internal/ordering"
	"portfolio/api/internal/rbac"
	"portfolio/api/internal/realtime"
	"portfolio/api/internal/render"
	"portfolio/api/internal/resume"
	"portfolio/api/internal/search"
	"portfolio/api/internal/session"
	"portfolio/api/internal/store"
	"portfolio/api/internal/util"
)

const maxMessageLength = 5000

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Email        string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

// DataStore is everything Service reads and writes. Both store.PostgresStore and
// store.MemoryStore satisfy it.
type DataStore interface {
	ordering.Store
	GetResume(ctx context.Context) (json.RawMessage, error)
	SaveResume(ctx context.Context, data json.RawMessage) error
	InsertMessage(ctx context.Context, message store.Message) error
	ListMessages(ctx context.Context) ([]store.Message, error)
	DeleteMessage(ctx context.Context, messageID string) error
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	UpsertUser(ctx context.Context, user store.User) error
	Snapshot(ctx context.Context) (store.SiteSnapshot, error)
	ReadOnly() bool
	Ping(ctx context.Context) error
}

type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	ConsumeRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

// Deps are the collaborators of Service. Store is required; Search, History,
// Exporter, Email and Archiver are optional.
type Deps struct {
	Store    DataStore
	Sessions sessionStore
	Search   *search.Service
	History  *history.Service
	Exporter *export.Service
	Email    *email.Service
	Archiver *Archiver
	Logger   *zap.Logger
}

type Service struct {
	cfg       config.Config
	store     DataStore
	sessions  sessionStore
	ordering  *ordering.Service
	resume    *resume.Service
	passwords *authpw.Service
	signer    *auth.Signer
	renderer  *render.Renderer
	search    *search.Service
	history   *history.Service
	exporter  *export.Service
	email     *email.Service
	archiver  *Archiver
	hub       *realtime.Hub
	notifier  realtime.Notifier
	logger    *zap.Logger
	now       func() time.Time
}

func New(cfg config.Config, deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sessions := deps.Sessions
	if sessions == nil {
		sessions = session.NewMemoryStore()
	}
	renderer := render.New()
	s := &Service{
		cfg:       cfg,
		store:     deps.Store,
		sessions:  sessions,
		ordering:  ordering.New(deps.Store, util.IDGenerator("")),
		resume:    resume.NewService(deps.Store),
		passwords: authpw.NewService(deps.Store, util.IDGenerator("usr")),
		signer:    auth.NewSigner(cfg.JWTSecret, cfg.AccessTTL),
		renderer:  renderer,
		search:    deps.Search,
		history:   deps.History,
		exporter:  deps.Exporter,
		email:     deps.Email,
		archiver:  deps.Archiver,
		logger:    logger,
		now:       time.Now,
	}
	if s.search == nil {
		s.search = search.NewService(nil, search.NewScan(deps.Store), logger)
	}
	if s.exporter == nil {
		s.exporter = export.NewService(export.Config{ChromeURL: cfg.ChromeURL, PandocPath: cfg.PandocPath}, renderer)
	}
	s.hub = realtime.NewHub(s.LoadTopic, logger)
	s.notifier = s.hub
	return s
}

// Hub is the local subscription hub fed by LoadTopic.
func (s *Service) Hub() *realtime.Hub {
	return s.hub
}

// SetNotifier replaces the change notifier, e.g. with a relay that fans out
// through Redis before reaching the hub.
func (s *Service) SetNotifier(n realtime.Notifier) {
	s.notifier = n
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) ReadOnly() bool {
	return s.store.ReadOnly()
}

// Bootstrap makes sure the owner account and the header page exist.
func (s *Service) Bootstrap(ctx context.Context) error {
	if s.cfg.OwnerEmail != "" && s.cfg.OwnerPassword != "" {
		owner, err := s.passwords.BootstrapOwner(ctx, authpw.BootstrapRequest{
			Email:       s.cfg.OwnerEmail,
			Password:    s.cfg.OwnerPassword,
			DisplayName: s.cfg.OwnerName,
		})
		if err != nil {
			return fmt.Errorf("bootstrap owner: %w", err)
		}
		s.logger.Info("owner account ready", zap.String("user_id", owner.ID))
	}
	if s.store.ReadOnly() {
		return nil
	}
	if _, err := s.ordering.EnsureHeaderPage(ctx); err != nil {
		return err
	}
	return nil
}

// Sessions

func (s *Service) Login(ctx context.Context, emailAddr, password string) (Session, error) {
	user, err := s.passwords.SignIn(ctx, authpw.SignInRequest{Email: emailAddr, Password: password})
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	user, err := s.sessions.ConsumeRefreshSession(ctx, auth.HashToken(refreshToken))
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	token, claims, err := s.signer.Issue(user.ID, user.Email, user.DisplayName, user.Role)
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := s.now().Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Email:        user.Email,
		Role:         user.Role,
		JTI:          claims.JTI,
		ExpiresAt:    time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := s.signer.Parse(token)
	if err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Email:     user.Email,
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

// AdminFromToken resolves the capability passed to every content mutation.
func (s *Service) AdminFromToken(ctx context.Context, token string) (auth.AdminSession, error) {
	current, err := s.SessionFromToken(ctx, token)
	if err != nil {
		return auth.AdminSession{}, err
	}
	return auth.AdminFromClaims(auth.Claims{
		Sub:   current.UserID,
		Email: current.Email,
		Role:  current.Role,
		Exp:   current.ExpiresAt.Unix(),
	})
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

func (s *Service) authorize(admin auth.AdminSession) error {
	if !admin.Valid(s.now()) {
		return auth.ErrNotOwner
	}
	return nil
}

// Pages and blocks

type PageList struct {
	Pages  []store.Page `json:"pages"`
	Header *store.Page  `json:"header,omitempty"`
}

func (s *Service) ListPages(ctx context.Context) (PageList, error) {
	pages, err := s.store.ListPages(ctx)
	if err != nil {
		return PageList{}, err
	}
	visible, header := layout.OrderPages(pages)
	return PageList{Pages: visible, Header: header}, nil
}

func (s *Service) PageBlocks(ctx context.Context, pageID string) (layout.Resolved, error) {
	page, blocks, err := s.loadPage(ctx, pageID)
	if err != nil {
		return layout.Resolved{}, err
	}
	return layout.Resolve(page, blocks), nil
}

func (s *Service) RenderPage(ctx context.Context, pageID string) (render.RenderedPage, error) {
	page, blocks, err := s.loadPage(ctx, pageID)
	if err != nil {
		return render.RenderedPage{}, err
	}
	return s.renderer.Page(page, layout.Resolve(page, blocks))
}

type Controls struct {
	Page   *layout.PageControls   `json:"page,omitempty"`
	Blocks []layout.BlockControls `json:"blocks"`
}

// Controls lists the move affordances of a page and its blocks. Only owners see them.
func (s *Service) Controls(ctx context.Context, admin auth.AdminSession, pageID string) (Controls, error) {
	if err := s.authorize(admin); err != nil {
		return Controls{}, err
	}
	page, blocks, err := s.loadPage(ctx, pageID)
	if err != nil {
		return Controls{}, err
	}
	pages, err := s.store.ListPages(ctx)
	if err != nil {
		return Controls{}, err
	}
	out := Controls{Blocks: layout.BlockAffordances(page, blocks)}
	for _, item := range layout.PageAffordances(pages) {
		if item.PageID == pageID {
			controls := item
			out.Page = &controls
		}
	}
	return out, nil
}

func (s *Service) AddPage(ctx context.Context, admin auth.AdminSession, title string) (store.Page, Notice, error) {
	if err := s.authorize(admin); err != nil {
		return store.Page{}, noticePageCreateFailed, err
	}
	page, err := s.ordering.AppendPage(ctx, title)
	if err != nil {
		return store.Page{}, noticePageCreateFailed, err
	}
	s.afterWrite(ctx, admin, "Add page "+page.ID, realtime.TopicPages)
	s.search.IndexPage(page, nil)
	return page, noticePageCreated, nil
}

type PageUpdate struct {
	Title  *string          `json:"title"`
	Layout store.LayoutKind `json:"layout"`
}

func (s *Service) UpdatePage(ctx context.Context, admin auth.AdminSession, pageID string, update PageUpdate) (store.Page, Notice, error) {
	if err := s.authorize(admin); err != nil {
		return store.Page{}, noticePageUpdateFailed, err
	}
	current, err := s.store.GetPage(ctx, pageID)
	if err != nil {
		return store.Page{}, noticePageUpdateFailed, err
	}
	title := current.Title
	if update.Title != nil {
		title = *update.Title
	}
	kind := current.Layout
	if update.Layout != "" {
		kind = update.Layout
	}
	page, err := s.ordering.ChangeLayout(ctx, pageID, title, kind)
	if err != nil {
		return store.Page{}, noticePageUpdateFailed, err
	}
	s.afterWrite(ctx, admin, "Update page "+pageID, realtime.TopicPages, realtime.BlocksTopic(pageID))
	s.indexPage(ctx, pageID)
	return page, noticePageUpdated, nil
}

func (s *Service) SetColumnWidths(ctx context.Context, admin auth.AdminSession, pageID string, widths []float64) (Notice, error) {
	if err := s.authorize(admin); err != nil {
		return noticeWidthsFailed, err
	}
	if err := s.ordering.SetColumnWidths(ctx, pageID, widths); err != nil {
		return noticeWidthsFailed, err
	}
	s.afterWrite(ctx, admin, "Resize columns of "+pageID, realtime.TopicPages, realtime.BlocksTopic(pageID))
	return noticeWidthsSaved, nil
}

func (s *Service) DeletePage(ctx context.Context, admin auth.AdminSession, pageID string) (Notice, error) {
	if err := s.authorize(admin); err != nil {
		return deleteFailed("page section"), err
	}
	if pageID == store.HeaderPageID {
		return deleteFailed("the header section"), validationError("The header section cannot be deleted")
	}
	page, blocks, err := s.loadPage(ctx, pageID)
	if err != nil {
		return deleteFailed("page section"), err
	}
	label := labelOrID(page.Title, page.ID)
	if err := s.ordering.DeletePage(ctx, pageID); err != nil {
		return deleteFailed(label), err
	}
	blockIDs := make([]string, 0, len(blocks))
	for _, block := range blocks {
		blockIDs = append(blockIDs, block.ID)
	}
	s.afterWrite(ctx, admin, "Delete page "+pageID, realtime.TopicPages, realtime.BlocksTopic(pageID))
	s.search.DeletePage(pageID, blockIDs)
	return deleted(label, true), nil
}

// MovePage swaps a page with its visitor-ordered neighbor.
func (s *Service) MovePage(ctx context.Context, admin auth.AdminSession, pageID string, dir layout.Direction) (Notice, error) {
	if err := s.authorize(admin); err != nil {
		return noticeSectionMoveFailed, err
	}
	if !dir.Vertical() {
		return noticeSectionMoveFailed, fmt.Errorf("%w: %q", ordering.ErrInvalidDirection, dir)
	}
	pages, err := s.store.ListPages(ctx)
	if err != nil {
		return noticeSectionMoveFailed, err
	}
	if !containsPage(pages, pageID) {
		return noticeSectionMoveFailed, fmt.Errorf("page %s: %w", pageID, store.ErrNotFound)
	}
	target, ok := layout.PageNeighbor(pages, pageID, dir)
	if !ok {
		return noticeSectionMoveFailed, moveNotAllowed("Page section cannot move " + string(dir))
	}
	if err := s.ordering.SwapPageOrder(ctx, pageID, target.ID); err != nil {
		return noticeSectionMoveFailed, err
	}
	s.afterWrite(ctx, admin, fmt.Sprintf("Move page %s %s", pageID, dir), realtime.TopicPages)
	return noticeSectionMoved, nil
}

type NewBlock struct {
	Type   store.BlockType `json:"type"`
	Column *int            `json:"column"`
}

// AddBlock appends a block from its type's starter template. Multi-column pages
// default to column 1.
func (s *Service) AddBlock(ctx context.Context, admin auth.AdminSession, pageID string, input NewBlock) (store.Block, Notice, error) {
	if err := s.authorize(admin); err != nil {
		return store.Block{}, noticeBlockCreateFailed, err
	}
	tmpl, err := ordering.DefaultTemplate(input.Type)
	if err != nil {
		return store.Block{}, noticeBlockCreateFailed, err
	}
	page, err := s.store.GetPage(ctx, pageID)
	if err != nil {
		return store.Block{}, noticeBlockCreateFailed, err
	}
	column := input.Column
	if !layout.IsMultiColumn(page.Layout) {
		column = nil
	} else if column == nil {
		column = store.Int(1)
	}
	block, err := s.ordering.AppendBlock(ctx, pageID, tmpl, column)
	if err != nil {
		return store.Block{}, noticeBlockCreateFailed, err
	}
	s.afterWrite(ctx, admin, "Add block to "+pageID, realtime.BlocksTopic(pageID))
	s.indexPage(ctx, pageID)
	return block, noticeBlockCreated, nil
}

func (s *Service) UpdateBlock(ctx context.Context, admin auth.AdminSession, pageID, blockID string, patch store.BlockPatch) (store.Block, Notice, error) {
	if err := s.authorize(admin); err != nil {
		return store.Block{}, blockUpdateFailed(""), err
	}
	current, err := s.store.GetBlock(ctx, pageID, blockID)
	if err != nil {
		return store.Block{}, blockUpdateFailed(""), err
	}
	kind := string(current.Type)
	if patch.Height != nil && *patch.Height < 0 {
		return store.Block{}, blockUpdateFailed(kind), validationError("height must not be negative")
	}
	block, err := s.ordering.UpdateBlock(ctx, pageID, blockID, patch)
	if err != nil {
		return store.Block{}, blockUpdateFailed(kind), err
	}
	s.afterWrite(ctx, admin, "Edit block "+blockID, realtime.BlocksTopic(pageID))
	s.indexPage(ctx, pageID)
	return block, blockUpdated(kind), nil
}

func (s *Service) DeleteBlock(ctx context.Context, admin auth.AdminSession, pageID, blockID string) (Notice, error) {
	if err := s.authorize(admin); err != nil {
		return deleteFailed("block"), err
	}
	block, err := s.store.GetBlock(ctx, pageID, blockID)
	if err != nil {
		return deleteFailed("block"), err
	}
	label := blockLabel(block)
	if err := s.ordering.DeleteBlock(ctx, pageID, blockID); err != nil {
		return deleteFailed(label), err
	}
	s.afterWrite(ctx, admin, "Delete block "+blockID, realtime.BlocksTopic(pageID))
	s.search.DeleteBlock(blockID)
	return deleted(label, false), nil
}

// MoveBlock swaps a block with its neighbor in the same column for up and down,
// and moves it to the adjacent column for left and right.
func (s *Service) MoveBlock(ctx context.Context, admin auth.AdminSession, pageID, blockID string, dir layout.Direction) (Notice, error) {
	failed := noticeBlockMoveFailed
	if dir.Horizontal() {
		failed = noticeColumnMoveFailed
	}
	if err := s.authorize(admin); err != nil {
		return failed, err
	}
	if !dir.Vertical() && !dir.Horizontal() {
		return failed, fmt.Errorf("%w: %q", ordering.ErrInvalidDirection, dir)
	}
	page, blocks, err := s.loadPage(ctx, pageID)
	if err != nil {
		return failed, err
	}
	var controls *layout.BlockControls
	for _, item := range layout.BlockAffordances(page, blocks) {
		if item.BlockID == blockID {
			c := item
			controls = &c
		}
	}
	if controls == nil {
		return failed, fmt.Errorf("block %s/%s: %w", pageID, blockID, store.ErrNotFound)
	}

	if dir.Vertical() {
		target, ok := layout.BlockNeighbor(page, blocks, blockID, dir)
		if !ok {
			return failed, moveNotAllowed("Block cannot move " + string(dir))
		}
		if err := s.ordering.SwapBlockOrder(ctx, pageID, blockID, target.ID); err != nil {
			return failed, err
		}
		s.afterWrite(ctx, admin, fmt.Sprintf("Move block %s %s", blockID, dir), realtime.BlocksTopic(pageID))
		return noticeBlockMoved, nil
	}

	if !layout.IsMultiColumn(page.Layout) {
		return failed, ordering.ErrNotMultiColumn
	}
	if (dir == layout.Left && !controls.CanMoveLeft) || (dir == layout.Right && !controls.CanMoveRight) {
		return failed, moveNotAllowed("Block cannot move " + string(dir))
	}
	if _, err := s.ordering.MoveBlockColumn(ctx, pageID, blockID, dir); err != nil {
		return failed, err
	}
	s.afterWrite(ctx, admin, fmt.Sprintf("Move block %s %s", blockID, dir), realtime.BlocksTopic(pageID))
	return noticeColumnMoved, nil
}

// Résumé

func (s *Service) GetResume(ctx context.Context) (resume.Resume, error) {
	return s.resume.Get(ctx)
}

func (s *Service) UpdateResume(ctx context.Context, admin auth.AdminSession, patch json.RawMessage) (resume.Resume, Notice, error) {
	if err := s.authorize(admin); err != nil {
		return resume.Resume{}, noticeResumeFailed, err
	}
	updated, err := s.resume.Update(ctx, patch)
	if err != nil {
		return resume.Resume{}, noticeResumeFailed, err
	}
	s.afterWrite(ctx, admin, "Update resume", realtime.TopicResume)
	return updated, noticeResumeUpdated, nil
}

func (s *Service) ExportResume(ctx context.Context, format export.Format) (*export.Result, error) {
	r, err := s.resume.Get(ctx)
	if err != nil {
		return nil, err
	}
	return s.exporter.ExportResume(ctx, r, format)
}

// Messages

func (s *Service) SendMessage(ctx context.Context, from, body string) (store.Message, Notice, error) {
	from = strings.TrimSpace(from)
	body = strings.TrimSpace(body)
	if body == "" {
		return store.Message{}, failure("", "Message cannot be empty."), validationError("Message cannot be empty.")
	}
	if utf8.RuneCountInString(body) > maxMessageLength {
		return store.Message{}, noticeMessageFailed, validationError(fmt.Sprintf("Message must be at most %d characters.", maxMessageLength))
	}
	if from != "" {
		if _, err := mail.ParseAddress(from); err != nil {
			return store.Message{}, failure("", "Please enter a valid email address."), validationError("Please enter a valid email address.")
		}
	}
	message := store.Message{
		ID:        util.NewID("msg"),
		Email:     from,
		Message:   body,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.InsertMessage(ctx, message); err != nil {
		return store.Message{}, noticeMessageFailed, err
	}
	s.changed(ctx, realtime.TopicMessages)
	s.notifyOwner(message)
	return message, noticeMessageSent, nil
}

func (s *Service) notifyOwner(message store.Message) {
	if s.email == nil || !s.email.IsConfigured() || s.cfg.OwnerEmail == "" {
		return
	}
	inbox := s.cfg.SiteURL + "/#messages"
	go func() {
		if err := s.email.SendNewMessageNotice(s.cfg.OwnerEmail, message, inbox); err != nil {
			s.logger.Warn("new message notice failed", zap.String("message_id", message.ID), zap.Error(err))
		}
	}()
}

func (s *Service) ListMessages(ctx context.Context, admin auth.AdminSession) ([]store.Message, error) {
	if err := s.authorize(admin); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx)
}

func (s *Service) DeleteMessage(ctx context.Context, admin auth.AdminSession, messageID string) (Notice, error) {
	if err := s.authorize(admin); err != nil {
		return noticeMessageDelFailed, err
	}
	if err := s.store.DeleteMessage(ctx, messageID); err != nil {
		return noticeMessageDelFailed, err
	}
	s.changed(ctx, realtime.TopicMessages)
	return noticeMessageDeleted, nil
}

// Search and history

func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	return s.search.Search(ctx, q)
}

func (s *Service) Reindex(ctx context.Context) error {
	site, err := s.store.Snapshot(ctx)
	if err != nil {
		return err
	}
	return s.search.ReindexAll(ctx, site)
}

func (s *Service) History(ctx context.Context, admin auth.AdminSession, limit int) ([]store.CommitInfo, error) {
	if err := s.authorize(admin); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []store.CommitInfo{}, nil
	}
	return s.history.History(limit)
}

type Revision struct {
	Commit       store.CommitInfo   `json:"commit"`
	Site         store.SiteSnapshot `json:"site"`
	ChangedPages []string           `json:"changedPages"`
}

// Revision returns the site as recorded at hash and the pages that differ from
// the current content.
func (s *Service) Revision(ctx context.Context, admin auth.AdminSession, hash string) (Revision, error) {
	if err := s.authorize(admin); err != nil {
		return Revision{}, err
	}
	if s.history == nil {
		return Revision{}, fmt.Errorf("revision %s: %w", hash, store.ErrNotFound)
	}
	site, info, err := s.history.At(hash)
	if err != nil {
		return Revision{}, err
	}
	current, err := s.store.Snapshot(ctx)
	if err != nil {
		return Revision{}, err
	}
	return Revision{Commit: info, Site: site, ChangedPages: history.ChangedPages(site, current)}, nil
}

// helpers

func (s *Service) loadPage(ctx context.Context, pageID string) (store.Page, []store.Block, error) {
	page, err := s.store.GetPage(ctx, pageID)
	if err != nil {
		return store.Page{}, nil, err
	}
	blocks, err := s.store.ListBlocks(ctx, pageID)
	if err != nil {
		return store.Page{}, nil, err
	}
	return page, blocks, nil
}

// afterWrite publishes the changed topics and queues a history snapshot.
func (s *Service) afterWrite(ctx context.Context, admin auth.AdminSession, message string, topics ...string) {
	s.changed(ctx, topics...)
	if s.archiver != nil {
		s.archiver.Request(admin.Email, message)
	}
}

func (s *Service) changed(ctx context.Context, topics ...string) {
	if s.notifier != nil {
		s.notifier.Changed(ctx, topics...)
	}
}

func (s *Service) indexPage(ctx context.Context, pageID string) {
	page, blocks, err := s.loadPage(ctx, pageID)
	if err != nil {
		s.logger.Warn("index page skipped", zap.String("page", pageID), zap.Error(err))
		return
	}
	s.search.IndexPage(page, blocks)
}

func containsPage(pages []store.Page, pageID string) bool {
	for _, page := range pages {
		if page.ID == pageID {
			return true
		}
	}
	return false
}

func labelOrID(label, id string) string {
	if strings.TrimSpace(label) != "" {
		return strings.TrimSpace(label)
	}
	return id
}

func blockLabel(block store.Block) string {
	if block.Type == store.BlockSpacer {
		return "Spacer"
	}
	text := strings.Join(strings.Fields(block.Content), " ")
	if utf8.RuneCountInString(text) > 30 {
		text = string([]rune(text)[:30]) + "…"
	}
	return labelOrID(text, block.ID)
}
