package blogmock

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"blog-e2e/internal/ir"
)

var (
	ErrInvalidUser      = errors.New("username and password must be at least 3 characters long")
	ErrDuplicateUser    = errors.New("expected `username` to be unique")
	ErrWrongCredentials = errors.New("wrong credentials")
	ErrInvalidToken     = errors.New("token invalid")
	ErrInvalidBlog      = errors.New("title is required")
	ErrNotFound         = errors.New("blog not found")
	ErrForbidden        = errors.New("only the creator can delete a blog")
)

type User struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Name     string   `json:"name"`
	Blogs    []string `json:"blogs"`

	password string
}

type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type Blog struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Author string   `json:"author"`
	URL    string   `json:"url"`
	Likes  int      `json:"likes"`
	User   *UserRef `json:"user,omitempty"`

	seq int
}

// MemoryStore holds all fake app state. Safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	users  map[string]*User // by username
	blogs  map[string]*Blog // by id
	tokens map[string]string
	seq    int
}

func NewStore() *MemoryStore {
	s := &MemoryStore{}
	s.Reset()
	return s
}

// Reset drops every user, blog and session.
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = map[string]*User{}
	s.blogs = map[string]*Blog{}
	s.tokens = map[string]string{}
	s.seq = 0
}

func (s *MemoryStore) CreateUser(u ir.User) (User, error) {
	if len(u.Username) < 3 || len(u.Password) < 3 {
		return User{}, ErrInvalidUser
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Username]; ok {
		return User{}, ErrDuplicateUser
	}
	nu := &User{
		ID:       uuid.NewString(),
		Username: u.Username,
		Name:     u.Name,
		Blogs:    []string{},
		password: u.Password,
	}
	s.users[u.Username] = nu
	return copyUser(nu), nil
}

// Login returns a session token for valid credentials.
func (s *MemoryStore) Login(username, password string) (string, User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok || u.password != password {
		return "", User{}, ErrWrongCredentials
	}
	token := uuid.NewString()
	s.tokens[token] = username
	return token, copyUser(u), nil
}

func (s *MemoryStore) UserForToken(token string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	username, ok := s.tokens[token]
	if !ok {
		return User{}, ErrInvalidToken
	}
	u, ok := s.users[username]
	if !ok {
		return User{}, ErrInvalidToken
	}
	return copyUser(u), nil
}

// Blogs lists blogs in creation order.
func (s *MemoryStore) Blogs() []Blog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Blog, 0, len(s.blogs))
	for _, b := range s.blogs {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func (s *MemoryStore) CreateBlog(owner User, in ir.Blog) (Blog, error) {
	if in.Title == "" || in.Likes < 0 {
		return Blog{}, ErrInvalidBlog
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[owner.Username]
	if !ok {
		return Blog{}, ErrInvalidToken
	}
	s.seq++
	b := &Blog{
		ID:     uuid.NewString(),
		Title:  in.Title,
		Author: in.Author,
		URL:    in.URL,
		Likes:  in.Likes,
		User:   &UserRef{ID: u.ID, Username: u.Username, Name: u.Name},
		seq:    s.seq,
	}
	s.blogs[b.ID] = b
	u.Blogs = append(u.Blogs, b.ID)
	return *b, nil
}

// UpdateBlog replaces the editable fields of blog id. The like button
// sends the current fields with likes+1.
func (s *MemoryStore) UpdateBlog(id string, in ir.Blog) (Blog, error) {
	if in.Title == "" || in.Likes < 0 {
		return Blog{}, ErrInvalidBlog
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blogs[id]
	if !ok {
		return Blog{}, ErrNotFound
	}
	b.Title, b.Author, b.URL, b.Likes = in.Title, in.Author, in.URL, in.Likes
	return *b, nil
}

func (s *MemoryStore) DeleteBlog(id string, by User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blogs[id]
	if !ok {
		return ErrNotFound
	}
	if b.User == nil || b.User.Username != by.Username {
		return ErrForbidden
	}
	delete(s.blogs, id)
	if u, ok := s.users[by.Username]; ok {
		kept := u.Blogs[:0]
		for _, bid := range u.Blogs {
			if bid != id {
				kept = append(kept, bid)
			}
		}
		u.Blogs = kept
	}
	return nil
}

func copyUser(u *User) User {
	cp := *u
	cp.Blogs = append([]string{}, u.Blogs...)
	return cp
}
