package bluesky

import (
	"testing"
)

func TestTextBuilder_Build(t *testing.T) {
	t.Run("テキストのみ", func(t *testing.T) {
		record := NewTextBuilder().Text("Hello world").Build()

		if record.Type != "app.bsky.feed.post" {
			t.Errorf("Typeが不正: got %q", record.Type)
		}
		if record.Text != "Hello world" {
			t.Errorf("Textが不正: got %q", record.Text)
		}
		if len(record.Facets) != 0 {
			t.Errorf("ファセットが生成された: %v", record.Facets)
		}
		if record.CreatedAt == "" {
			t.Error("CreatedAtが空")
		}
	})

	t.Run("リンクのバイト区間", func(t *testing.T) {
		record := NewTextBuilder().
			Text("see ").
			Link("https://example.com").
			Build()

		if record.Text != "see https://example.com" {
			t.Errorf("Textが不正: got %q", record.Text)
		}
		if len(record.Facets) != 1 {
			t.Fatalf("ファセット数が不正: got %d, want 1", len(record.Facets))
		}

		facet := record.Facets[0]
		if facet.Index.ByteStart != 4 || facet.Index.ByteEnd != 23 {
			t.Errorf("バイト区間が不正: got [%d, %d), want [4, 23)", facet.Index.ByteStart, facet.Index.ByteEnd)
		}
		if facet.Features[0].Type != featureLink {
			t.Errorf("feature種別が不正: got %q", facet.Features[0].Type)
		}
		if facet.Features[0].URI != "https://example.com" {
			t.Errorf("URIが不正: got %q", facet.Features[0].URI)
		}
	})

	t.Run("マルチバイト文字後のバイト区間", func(t *testing.T) {
		// "こんにちは " はUTF-8で16バイト（5文字x3バイト + スペース1バイト）
		record := NewTextBuilder().
			Text("こんにちは ").
			Tag("#golang").
			Build()

		if len(record.Facets) != 1 {
			t.Fatalf("ファセット数が不正: got %d, want 1", len(record.Facets))
		}

		facet := record.Facets[0]
		if facet.Index.ByteStart != 16 || facet.Index.ByteEnd != 23 {
			t.Errorf("バイト区間が不正: got [%d, %d), want [16, 23)", facet.Index.ByteStart, facet.Index.ByteEnd)
		}
		if facet.Features[0].Tag != "golang" {
			t.Errorf("タグから#が除去されていない: got %q", facet.Features[0].Tag)
		}
	})

	t.Run("メンションはhandleを内部保持する", func(t *testing.T) {
		record := NewTextBuilder().
			Mention("@alice.bsky.social").
			Build()

		if record.Text != "@alice.bsky.social" {
			t.Errorf("Textが不正: got %q", record.Text)
		}

		facet := record.Facets[0]
		if facet.Features[0].Type != featureMention {
			t.Errorf("feature種別が不正: got %q", facet.Features[0].Type)
		}
		if facet.Features[0].handle != "alice.bsky.social" {
			t.Errorf("handleから@が除去されていない: got %q", facet.Features[0].handle)
		}
		if facet.Features[0].DID != "" {
			t.Errorf("解決前のDIDが空でない: got %q", facet.Features[0].DID)
		}
	})

	t.Run("複数セグメントの順序とオフセット", func(t *testing.T) {
		record := NewTextBuilder().
			Text("Hello").
			NewLine().
			Mention("@bob").
			Text(" ").
			Tag("#fun").
			Build()

		if record.Text != "Hello\n@bob #fun" {
			t.Errorf("Textが不正: got %q", record.Text)
		}
		if len(record.Facets) != 2 {
			t.Fatalf("ファセット数が不正: got %d, want 2", len(record.Facets))
		}

		mention := record.Facets[0]
		if mention.Index.ByteStart != 6 || mention.Index.ByteEnd != 10 {
			t.Errorf("メンションのバイト区間が不正: got [%d, %d), want [6, 10)", mention.Index.ByteStart, mention.Index.ByteEnd)
		}

		tag := record.Facets[1]
		if tag.Index.ByteStart != 11 || tag.Index.ByteEnd != 15 {
			t.Errorf("タグのバイト区間が不正: got [%d, %d), want [11, 15)", tag.Index.ByteStart, tag.Index.ByteEnd)
		}
	})
}
