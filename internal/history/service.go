// Package history keeps every published state of the site in a git repository.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"portfolio/api/internal/store"
)

const (
	pagesDir   = "pages"
	resumeFile = "resume.json"
	branch     = "main"
)

var ErrNoHistory = errors.New("history repository not initialised")

type Service struct {
	dir string
	mu  sync.Mutex
}

func New(dir string) *Service {
	return &Service{dir: dir}
}

// Record writes site into the worktree and commits it. changed is false when
// the site matches the last commit and nothing was committed.
func (s *Service) Record(site store.SiteSnapshot, author, message string) (info store.CommitInfo, changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := s.open()
	if err != nil {
		return store.CommitInfo{}, false, err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return store.CommitInfo{}, false, fmt.Errorf("open worktree: %w", err)
	}
	if err := writeSite(s.dir, site); err != nil {
		return store.CommitInfo{}, false, err
	}
	if err := worktree.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return store.CommitInfo{}, false, fmt.Errorf("git add site: %w", err)
	}
	status, err := worktree.Status()
	if err != nil {
		return store.CommitInfo{}, false, fmt.Errorf("worktree status: %w", err)
	}
	if status.IsClean() {
		head, err := repo.Head()
		if err != nil {
			return store.CommitInfo{}, false, nil
		}
		commitObj, err := repo.CommitObject(head.Hash())
		if err != nil {
			return store.CommitInfo{}, false, fmt.Errorf("read head commit: %w", err)
		}
		return toCommitInfo(commitObj), false, nil
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@portfolio.local", sanitizeEmail(author)),
			When:  time.Now(),
		},
	})
	if err != nil {
		return store.CommitInfo{}, false, fmt.Errorf("commit site: %w", err)
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return store.CommitInfo{}, false, fmt.Errorf("read commit object: %w", err)
	}
	return toCommitInfo(commitObj), true, nil
}

// History lists commits newest first; limit <= 0 means all.
func (s *Service) History(limit int) ([]store.CommitInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := git.PlainOpen(s.dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return []store.CommitInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return []store.CommitInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve head: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]store.CommitInfo, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommitInfo(commitObj))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// At returns the site as it was at hash (short or full).
func (s *Service) At(hash string) (store.SiteSnapshot, store.CommitInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := git.PlainOpen(s.dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return store.SiteSnapshot{}, store.CommitInfo{}, fmt.Errorf("commit %s: %w", hash, store.ErrNotFound)
	}
	if err != nil {
		return store.SiteSnapshot{}, store.CommitInfo{}, fmt.Errorf("open repo: %w", err)
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return store.SiteSnapshot{}, store.CommitInfo{}, fmt.Errorf("commit %s: %w", hash, store.ErrNotFound)
	}
	commitObj, err := repo.CommitObject(*resolved)
	if err != nil {
		return store.SiteSnapshot{}, store.CommitInfo{}, fmt.Errorf("read commit %s: %w", hash, err)
	}
	site, err := readSite(commitObj)
	if err != nil {
		return store.SiteSnapshot{}, store.CommitInfo{}, err
	}
	return site, toCommitInfo(commitObj), nil
}

// ChangedPages names the pages added, removed or edited between two sites.
func ChangedPages(from, to store.SiteSnapshot) []string {
	encode := func(site store.SiteSnapshot) map[string]string {
		out := make(map[string]string, len(site.Pages))
		for _, page := range site.Pages {
			page.UpdatedAt = time.Time{}
			data, _ := json.Marshal(page)
			out[page.ID] = string(data)
		}
		return out
	}
	before, after := encode(from), encode(to)
	changed := make([]string, 0)
	for id, data := range after {
		if before[id] != data {
			changed = append(changed, id)
		}
	}
	for id := range before {
		if _, ok := after[id]; !ok {
			changed = append(changed, id)
		}
	}
	sort.Strings(changed)
	return changed
}

func (s *Service) open() (*git.Repository, error) {
	repo, err := git.PlainOpen(s.dir)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(s.dir, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branch))); err != nil {
		return nil, fmt.Errorf("set HEAD to %s: %w", branch, err)
	}
	return repo, nil
}

func writeSite(root string, site store.SiteSnapshot) error {
	dir := filepath.Join(root, pagesDir)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear pages: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create pages dir: %w", err)
	}
	for _, page := range site.Pages {
		if err := writeJSON(filepath.Join(dir, page.ID+".json"), page); err != nil {
			return err
		}
	}
	resumePath := filepath.Join(root, resumeFile)
	if len(site.Resume) == 0 {
		if err := os.Remove(resumePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove resume: %w", err)
		}
		return nil
	}
	var resume any
	if err := json.Unmarshal(site.Resume, &resume); err != nil {
		return fmt.Errorf("decode resume: %w", err)
	}
	return writeJSON(resumePath, resume)
}

func writeJSON(path string, value any) error {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(payload, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readSite(commitObj *object.Commit) (store.SiteSnapshot, error) {
	files, err := commitObj.Files()
	if err != nil {
		return store.SiteSnapshot{}, fmt.Errorf("list commit files: %w", err)
	}
	site := store.SiteSnapshot{Pages: []store.PageWithBlocks{}}
	err = files.ForEach(func(file *object.File) error {
		contents, err := file.Contents()
		if err != nil {
			return fmt.Errorf("read %s: %w", file.Name, err)
		}
		switch {
		case file.Name == resumeFile:
			site.Resume = json.RawMessage(contents)
		case strings.HasPrefix(file.Name, pagesDir+"/") && strings.HasSuffix(file.Name, ".json"):
			var page store.PageWithBlocks
			if err := json.Unmarshal([]byte(contents), &page); err != nil {
				return fmt.Errorf("decode %s: %w", file.Name, err)
			}
			site.Pages = append(site.Pages, page)
		}
		return nil
	})
	if err != nil {
		return store.SiteSnapshot{}, err
	}
	sort.SliceStable(site.Pages, func(i, j int) bool {
		if !site.Pages[i].CreatedAt.Equal(site.Pages[j].CreatedAt) {
			return site.Pages[i].CreatedAt.Before(site.Pages[j].CreatedAt)
		}
		return site.Pages[i].ID < site.Pages[j].ID
	})
	return site, nil
}

func toCommitInfo(commitObj *object.Commit) store.CommitInfo {
	return store.CommitInfo{
		Hash:      commitObj.Hash.String()[:7],
		Message:   strings.TrimSpace(commitObj.Message),
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "owner"
	}
	return string(out)
}
