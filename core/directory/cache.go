package directory

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

type (
	cacheEntry[V any] struct {
		value   V
		expires time.Time
	}

	// CachedRepository fronts a Repository with concurrency-safe caches of successful lookups.
	// Misses are never cached.
	CachedRepository struct {
		next     Repository
		ttl      time.Duration
		now      func() time.Time
		students *xsync.Map[string, cacheEntry[Student]]
		classes  *xsync.Map[string, cacheEntry[Class]]
	}
)

var _ Repository = (*CachedRepository)(nil) // interface compliance check

func NewCachedRepository(next Repository, ttl time.Duration) *CachedRepository {
	return &CachedRepository{
		next:     next,
		ttl:      ttl,
		now:      time.Now,
		students: xsync.NewMap[string, cacheEntry[Student]](),
		classes:  xsync.NewMap[string, cacheEntry[Class]](),
	}
}

func studentIDKey(id int) string { return "id:" + strconv.Itoa(id) }

func studentAliasKey(alias string) string { return "alias:" + strings.ToLower(alias) }

func classKey(classNum, term string) string { return classNum + "|" + term }

func (c *CachedRepository) fresh(expires time.Time) bool {
	return c.ttl <= 0 || c.now().Before(expires)
}

func (c *CachedRepository) storeStudent(std Student) {
	entry := cacheEntry[Student]{value: std, expires: c.now().Add(c.ttl)}
	c.students.Store(studentIDKey(std.ID), entry)
	if std.ASUrite != "" {
		c.students.Store(studentAliasKey(std.ASUrite), entry)
	}
}

func (c *CachedRepository) loadStudent(key string) (Student, bool) {
	if entry, ok := c.students.Load(key); ok {
		if c.fresh(entry.expires) {
			return entry.value, true
		}
		c.students.Delete(key)
	}
	return Student{}, false
}

func (c *CachedRepository) GetStudentByID(ctx context.Context, id int) (Student, error) {
	if std, ok := c.loadStudent(studentIDKey(id)); ok {
		return std, nil
	}
	std, err := c.next.GetStudentByID(ctx, id)
	if err != nil {
		return Student{}, err
	}
	c.storeStudent(std)
	return std, nil
}

func (c *CachedRepository) GetStudentByAlias(ctx context.Context, alias string) (Student, error) {
	if std, ok := c.loadStudent(studentAliasKey(alias)); ok {
		return std, nil
	}
	std, err := c.next.GetStudentByAlias(ctx, alias)
	if err != nil {
		return Student{}, err
	}
	c.storeStudent(std)
	return std, nil
}

func (c *CachedRepository) GetClass(ctx context.Context, classNum, term string) (Class, error) {
	key := classKey(classNum, term)
	if entry, ok := c.classes.Load(key); ok {
		if c.fresh(entry.expires) {
			return entry.value, nil
		}
		c.classes.Delete(key)
	}
	cls, err := c.next.GetClass(ctx, classNum, term)
	if err != nil {
		return Class{}, err
	}
	c.classes.Store(key, cacheEntry[Class]{value: cls, expires: c.now().Add(c.ttl)})
	return cls, nil
}

// Purge drops every cached entry.
func (c *CachedRepository) Purge() {
	c.students.Clear()
	c.classes.Clear()
}

// Len returns the number of cached students & classes.
func (c *CachedRepository) Len() (students, classes int) {
	return c.students.Size(), c.classes.Size()
}
