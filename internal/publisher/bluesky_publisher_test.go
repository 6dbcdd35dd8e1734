package publisher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/crosspost/internal/bluesky"
	"github.com/hitoshi/crosspost/internal/model"
)

// --- BlueskyPublisher テスト用モック ---

// mockPostStore はテスト用のPostStoreモック。状態遷移を順に記録する。
type mockPostStore struct {
	transitions      []model.PostStatus
	markPublishedFn  func(ctx context.Context, id, remotePostID string, publishedAt time.Time) error
	updateStatusFn   func(ctx context.Context, id string, status model.PostStatus) error
	publishedPostID  string
	publishedRemote  string
	markPublishCalls int
}

func (m *mockPostStore) UpdateStatus(ctx context.Context, id string, status model.PostStatus) error {
	m.transitions = append(m.transitions, status)
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status)
	}
	return nil
}

func (m *mockPostStore) MarkPublished(ctx context.Context, id, remotePostID string, publishedAt time.Time) error {
	m.markPublishCalls++
	m.publishedPostID = id
	m.publishedRemote = remotePostID
	if m.markPublishedFn != nil {
		return m.markPublishedFn(ctx, id, remotePostID, publishedAt)
	}
	return nil
}

// mockBlueskyAPI はテスト用のBlueskyAPIモック。
type mockBlueskyAPI struct {
	createSessionFn func(ctx context.Context, identifier, password string) (*bluesky.Session, error)
	createPostFn    func(ctx context.Context, session *bluesky.Session, record *bluesky.PostRecord) (*bluesky.CreateRecordResult, error)
}

func (m *mockBlueskyAPI) CreateSession(ctx context.Context, identifier, password string) (*bluesky.Session, error) {
	return m.createSessionFn(ctx, identifier, password)
}

func (m *mockBlueskyAPI) CreatePost(ctx context.Context, session *bluesky.Session, record *bluesky.PostRecord) (*bluesky.CreateRecordResult, error) {
	return m.createPostFn(ctx, session, record)
}

// mockDecrypter はテスト用のCredentialDecrypterモック。
type mockDecrypter struct {
	decryptFn func(encoded string) (string, error)
}

func (m *mockDecrypter) Decrypt(encoded string) (string, error) {
	if m.decryptFn != nil {
		return m.decryptFn(encoded)
	}
	return "decrypted-" + encoded, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDoc(text string) model.Document {
	return model.Document{
		Type: "doc",
		Content: []model.Node{
			{Type: model.NodeTypeParagraph, Content: []model.Node{{Type: model.NodeTypeText, Text: text}}},
		},
	}
}

func TestBlueskyPublisher_Publish(t *testing.T) {
	account := &model.Account{ID: "acc-1", Handle: "alice.bsky.social", AccessToken: "enc-password"}
	post := &model.Post{ID: "post-1"}

	t.Run("成功時はpublishedに遷移しremote_post_idを記録する", func(t *testing.T) {
		store := &mockPostStore{}
		api := &mockBlueskyAPI{
			createSessionFn: func(_ context.Context, identifier, password string) (*bluesky.Session, error) {
				if identifier != "alice.bsky.social" {
					t.Errorf("identifierが不正: %q", identifier)
				}
				if password != "decrypted-enc-password" {
					t.Errorf("復号済みパスワードが渡されていない: %q", password)
				}
				return &bluesky.Session{DID: "did:plc:me", AccessJwt: "jwt"}, nil
			},
			createPostFn: func(_ context.Context, _ *bluesky.Session, record *bluesky.PostRecord) (*bluesky.CreateRecordResult, error) {
				if record.Text != "Hello world" {
					t.Errorf("投稿本文が不正: %q", record.Text)
				}
				result := &bluesky.CreateRecordResult{}
				result.Commit.Rev = "rev-789"
				return result, nil
			},
		}

		pub := NewBlueskyPublisher(store, api, &mockDecrypter{}, testLogger())
		err := pub.Publish(context.Background(), account, post, testDoc("Hello world"), nil)
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}

		if len(store.transitions) != 1 || store.transitions[0] != model.PostStatusRunning {
			t.Errorf("状態遷移が不正: %v", store.transitions)
		}
		if store.markPublishCalls != 1 {
			t.Errorf("MarkPublished呼び出し回数が不正: %d", store.markPublishCalls)
		}
		if store.publishedRemote != "rev-789" {
			t.Errorf("remote_post_idが不正: got %q, want %q", store.publishedRemote, "rev-789")
		}
	})

	t.Run("復号失敗時はfailedに遷移しリモートを呼ばない", func(t *testing.T) {
		store := &mockPostStore{}
		sessionCalled := false
		api := &mockBlueskyAPI{
			createSessionFn: func(_ context.Context, _, _ string) (*bluesky.Session, error) {
				sessionCalled = true
				return nil, nil
			},
		}
		cipher := &mockDecrypter{decryptFn: func(string) (string, error) {
			return "", errors.New("cipher: message authentication failed")
		}}

		pub := NewBlueskyPublisher(store, api, cipher, testLogger())
		err := pub.Publish(context.Background(), account, post, testDoc("x"), nil)
		if err == nil {
			t.Fatal("エラーが返されなかった")
		}

		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeAuthenticationFailed {
			t.Errorf("AUTHENTICATION_FAILEDでないエラー: %v", err)
		}
		if sessionCalled {
			t.Error("復号失敗後にCreateSessionが呼ばれた")
		}
		assertFinalStatus(t, store, model.PostStatusFailed)
	})

	t.Run("認証失敗時はfailedに遷移しエラーを返す", func(t *testing.T) {
		store := &mockPostStore{}
		api := &mockBlueskyAPI{
			createSessionFn: func(_ context.Context, _, _ string) (*bluesky.Session, error) {
				return nil, model.NewAuthenticationError("bad password")
			},
		}

		pub := NewBlueskyPublisher(store, api, &mockDecrypter{}, testLogger())
		err := pub.Publish(context.Background(), account, post, testDoc("x"), nil)
		if err == nil {
			t.Fatal("エラーが返されなかった")
		}
		assertFinalStatus(t, store, model.PostStatusFailed)
	})

	t.Run("送信失敗時はfailedに遷移しMarkPublishedは呼ばれない", func(t *testing.T) {
		store := &mockPostStore{}
		api := &mockBlueskyAPI{
			createSessionFn: func(_ context.Context, _, _ string) (*bluesky.Session, error) {
				return &bluesky.Session{DID: "did:plc:me"}, nil
			},
			createPostFn: func(_ context.Context, _ *bluesky.Session, _ *bluesky.PostRecord) (*bluesky.CreateRecordResult, error) {
				return nil, model.NewRemoteSubmissionError("rate limited")
			},
		}

		pub := NewBlueskyPublisher(store, api, &mockDecrypter{}, testLogger())
		err := pub.Publish(context.Background(), account, post, testDoc("x"), nil)
		if err == nil {
			t.Fatal("エラーが返されなかった")
		}

		if store.markPublishCalls != 0 {
			t.Error("失敗時にMarkPublishedが呼ばれた")
		}
		assertFinalStatus(t, store, model.PostStatusFailed)
	})

	t.Run("タイムアウト期限切れで送信が失敗してもfailedに遷移する", func(t *testing.T) {
		// 実リポジトリと同様にキャンセル済みコンテキストでの書き込みを
		// 拒否するストアで、期限切れ後の終端遷移が完了することを確認する。
		store := &mockPostStore{}
		var committed []model.PostStatus
		store.updateStatusFn = func(ctx context.Context, _ string, status model.PostStatus) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			committed = append(committed, status)
			return nil
		}
		api := &mockBlueskyAPI{
			createSessionFn: func(_ context.Context, _, _ string) (*bluesky.Session, error) {
				return &bluesky.Session{DID: "did:plc:me"}, nil
			},
			createPostFn: func(ctx context.Context, _ *bluesky.Session, _ *bluesky.PostRecord) (*bluesky.CreateRecordResult, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			},
		}

		pub := NewBlueskyPublisher(store, api, &mockDecrypter{}, testLogger())
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := pub.Publish(ctx, account, post, testDoc("x"), nil)
		if err == nil {
			t.Fatal("エラーが返されなかった")
		}
		if len(committed) == 0 || committed[len(committed)-1] != model.PostStatusFailed {
			t.Errorf("期限切れ後にfailedの書き込みが完了していない: %v", committed)
		}
	})

	t.Run("文書のエンティティがファセットとして送信される", func(t *testing.T) {
		store := &mockPostStore{}
		var sentRecord *bluesky.PostRecord
		api := &mockBlueskyAPI{
			createSessionFn: func(_ context.Context, _, _ string) (*bluesky.Session, error) {
				return &bluesky.Session{DID: "did:plc:me"}, nil
			},
			createPostFn: func(_ context.Context, _ *bluesky.Session, record *bluesky.PostRecord) (*bluesky.CreateRecordResult, error) {
				sentRecord = record
				return &bluesky.CreateRecordResult{}, nil
			},
		}

		pub := NewBlueskyPublisher(store, api, &mockDecrypter{}, testLogger())
		err := pub.Publish(context.Background(), account, post, testDoc("check https://example.com #go"), nil)
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}

		if sentRecord.Text != "check https://example.com #go" {
			t.Errorf("本文が不正: %q", sentRecord.Text)
		}
		if len(sentRecord.Facets) != 2 {
			t.Errorf("ファセット数が不正: got %d, want 2", len(sentRecord.Facets))
		}
	})
}

// assertFinalStatus は最後の状態遷移を検証する。runningのまま残らないことも確認する。
func assertFinalStatus(t *testing.T, store *mockPostStore, want model.PostStatus) {
	t.Helper()
	if len(store.transitions) == 0 {
		t.Fatal("状態遷移が記録されていない")
	}
	last := store.transitions[len(store.transitions)-1]
	if last != want {
		t.Errorf("最終状態が不正: got %s, want %s", last, want)
	}
}

func TestRegistry(t *testing.T) {
	t.Run("登録済みプラットフォームを解決できる", func(t *testing.T) {
		registry := NewRegistry()
		pub := NewBlueskyPublisher(&mockPostStore{}, &mockBlueskyAPI{}, &mockDecrypter{}, testLogger())
		registry.Register(model.PlatformBluesky, pub)

		got, err := registry.Resolve(model.PlatformBluesky)
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if got != pub {
			t.Error("登録したPublisherと異なるインスタンスが返された")
		}
	})

	t.Run("未知のプラットフォームはUNSUPPORTED_PLATFORM", func(t *testing.T) {
		registry := NewRegistry()

		_, err := registry.Resolve(model.Platform("myspace"))
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUnsupportedPlatform {
			t.Errorf("UNSUPPORTED_PLATFORMでないエラー: %v", err)
		}
	})
}
