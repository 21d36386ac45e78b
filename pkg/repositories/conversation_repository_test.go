package repositories

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/database"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/models"
)

// steppingClock advances one second per call.
type steppingClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newClock() *steppingClock {
	return &steppingClock{t: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)}
}

type repoFactory struct {
	name string
	new  func(t *testing.T) ConversationRepository
}

func repoFactories() []repoFactory {
	return []repoFactory{
		{
			name: "file",
			new: func(t *testing.T) ConversationRepository {
				r, err := NewFileConversationRepository(t.TempDir(), zap.NewNop())
				require.NoError(t, err)
				r.now = newClock().Now
				return r
			},
		},
		{
			name: "sqlite",
			new: func(t *testing.T) ConversationRepository {
				db, err := database.Open(context.Background(), ":memory:", zap.NewNop())
				require.NoError(t, err)
				t.Cleanup(func() { _ = db.Close() })
				r := NewSQLiteConversationRepository(db.DB)
				r.now = newClock().Now
				return r
			},
		},
	}
}

func forEachRepo(t *testing.T, fn func(t *testing.T, repo ConversationRepository)) {
	for _, f := range repoFactories() {
		t.Run(f.name, func(t *testing.T) {
			fn(t, f.new(t))
		})
	}
}

func TestConversationRepository_CreateAndGet(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo ConversationRepository) {
		ctx := context.Background()

		conv, err := repo.Create(ctx, "")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(conv.ID, "conv_"))
		assert.Len(t, conv.ID, len("conv_")+12)
		assert.Equal(t, models.DefaultConversationTitle, conv.Title)
		assert.Equal(t, 0, conv.MessageCount)

		got, err := repo.Get(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, conv.ID, got.ID)
		assert.Empty(t, got.Messages)
		assert.True(t, conv.CreatedAt.Equal(got.CreatedAt))

		_, err = repo.Get(ctx, "conv_missing")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestConversationRepository_AddMessageKeepsInvariants(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo ConversationRepository) {
		ctx := context.Background()
		conv, err := repo.Create(ctx, "")
		require.NoError(t, err)

		long := "請幫我列出過去三十天內所有訂單金額大於一千元的客戶名稱與電話號碼"
		first, err := repo.AddMessage(ctx, conv.ID, models.RoleUser, long)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(first.ID, "msg_"))

		_, err = repo.AddMessage(ctx, conv.ID, models.RoleAssistant, "好的")
		require.NoError(t, err)
		_, err = repo.AddMessage(ctx, conv.ID, models.RoleUser, "第二個問題")
		require.NoError(t, err)

		got, err := repo.Get(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, got.MessageCount)
		assert.Len(t, got.Messages, 3)
		assert.Equal(t, string([]rune(long)[:30])+"...", got.Title)
		assert.Equal(t, models.RoleAssistant, got.Messages[1].Role)
		assert.True(t, got.UpdatedAt.After(conv.UpdatedAt))

		for i := 1; i < len(got.Messages); i++ {
			assert.False(t, got.Messages[i].CreatedAt.Before(got.Messages[i-1].CreatedAt))
		}

		_, err = repo.AddMessage(ctx, "conv_missing", models.RoleUser, "x")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestConversationRepository_TitleOnlyFromFirstUserMessage(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo ConversationRepository) {
		ctx := context.Background()
		conv, err := repo.Create(ctx, "我的報表")
		require.NoError(t, err)

		_, err = repo.AddMessage(ctx, conv.ID, models.RoleUser, "顯示所有用戶")
		require.NoError(t, err)

		got, err := repo.Get(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, "我的報表", got.Title)
	})
}

func TestConversationRepository_ListSortedByUpdatedAt(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo ConversationRepository) {
		ctx := context.Background()
		a, err := repo.Create(ctx, "a")
		require.NoError(t, err)
		b, err := repo.Create(ctx, "b")
		require.NoError(t, err)
		c, err := repo.Create(ctx, "c")
		require.NoError(t, err)

		_, err = repo.AddMessage(ctx, a.ID, models.RoleUser, "hello")
		require.NoError(t, err)

		list, err := repo.List(ctx, 100, 0)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, []string{a.ID, c.ID, b.ID}, []string{list[0].ID, list[1].ID, list[2].ID})
		assert.Equal(t, 1, list[0].MessageCount)
		assert.Empty(t, list[0].Messages)

		paged, err := repo.List(ctx, 1, 1)
		require.NoError(t, err)
		require.Len(t, paged, 1)
		assert.Equal(t, c.ID, paged[0].ID)

		beyond, err := repo.List(ctx, 10, 5)
		require.NoError(t, err)
		assert.Empty(t, beyond)
	})
}

func TestConversationRepository_UpdateTitle(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo ConversationRepository) {
		ctx := context.Background()
		conv, err := repo.Create(ctx, "old")
		require.NoError(t, err)

		updated, err := repo.UpdateTitle(ctx, conv.ID, "new")
		require.NoError(t, err)
		assert.Equal(t, "new", updated.Title)
		assert.True(t, updated.UpdatedAt.After(conv.UpdatedAt))

		same, err := repo.UpdateTitle(ctx, conv.ID, "")
		require.NoError(t, err)
		assert.Equal(t, "new", same.Title)
		assert.True(t, same.UpdatedAt.After(updated.UpdatedAt))

		_, err = repo.UpdateTitle(ctx, "conv_missing", "x")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestConversationRepository_MessagesPaging(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo ConversationRepository) {
		ctx := context.Background()
		conv, err := repo.Create(ctx, "")
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			_, err := repo.AddMessage(ctx, conv.ID, models.RoleUser, fmt.Sprintf("m%d", i))
			require.NoError(t, err)
		}

		msgs, err := repo.Messages(ctx, conv.ID, 2, 1)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "m1", msgs[0].Content)
		assert.Equal(t, "m2", msgs[1].Content)

		all, err := repo.Messages(ctx, conv.ID, 0, 0)
		require.NoError(t, err)
		assert.Len(t, all, 5)

		_, err = repo.Messages(ctx, "conv_missing", 10, 0)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestConversationRepository_ClearAndDelete(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo ConversationRepository) {
		ctx := context.Background()
		conv, err := repo.Create(ctx, "")
		require.NoError(t, err)
		_, err = repo.AddMessage(ctx, conv.ID, models.RoleUser, "hi")
		require.NoError(t, err)
		before, err := repo.Get(ctx, conv.ID)
		require.NoError(t, err)

		require.NoError(t, repo.ClearMessages(ctx, conv.ID))
		cleared, err := repo.Get(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, cleared.MessageCount)
		assert.Empty(t, cleared.Messages)
		assert.True(t, cleared.UpdatedAt.After(before.UpdatedAt))

		require.NoError(t, repo.Delete(ctx, conv.ID))
		_, err = repo.Get(ctx, conv.ID)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, conv.ID), apperrors.ErrNotFound)
		assert.ErrorIs(t, repo.ClearMessages(ctx, conv.ID), apperrors.ErrNotFound)
	})
}

func TestConversationRepository_ConcurrentAppends(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo ConversationRepository) {
		ctx := context.Background()
		conv, err := repo.Create(ctx, "")
		require.NoError(t, err)

		const n = 20
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := repo.AddMessage(ctx, conv.ID, models.RoleAssistant, fmt.Sprintf("m%d", i))
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		got, err := repo.Get(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, n, got.MessageCount)
		assert.Len(t, got.Messages, n)
	})
}

func TestFileConversationRepository_RebuildsCorruptIndex(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewFileConversationRepository(dir, zap.NewNop())
	require.NoError(t, err)
	conv, err := repo.Create(context.Background(), "keep me")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, indexFileName), []byte("{not json"), 0o644))

	reopened, err := NewFileConversationRepository(dir, zap.NewNop())
	require.NoError(t, err)
	list, err := reopened.List(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, conv.ID, list[0].ID)
	assert.Equal(t, "keep me", list[0].Title)
}

func TestFileConversationRepository_RejectsPathLikeIDs(t *testing.T) {
	repo, err := NewFileConversationRepository(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	_, err = repo.Get(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestKeyedMutex_ForgetsReleasedKeys(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock("a")
	assert.Len(t, k.locks, 1)
	unlock()
	assert.Empty(t, k.locks)
}
