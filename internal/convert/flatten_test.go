package convert

import (
	"testing"

	"github.com/hitoshi/crosspost/internal/model"
)

// textNode はテスト用のtextノードを生成するヘルパー。
func textNode(text string, marks ...model.Mark) model.Node {
	return model.Node{Type: model.NodeTypeText, Text: text, Marks: marks}
}

// paragraph はテスト用のparagraphノードを生成するヘルパー。
func paragraph(content ...model.Node) model.Node {
	return model.Node{Type: model.NodeTypeParagraph, Content: content}
}

func linkMark(href string) model.Mark {
	return model.Mark{Type: model.MarkTypeLink, Attrs: model.MarkAttrs{Href: href}}
}

func TestFlattenText(t *testing.T) {
	tests := []struct {
		name string
		doc  model.Document
		want string
	}{
		{
			name: "空の文書は空文字列",
			doc:  model.Document{},
			want: "",
		},
		{
			name: "単一段落のプレーンテキスト",
			doc: model.Document{
				Type:    "doc",
				Content: []model.Node{paragraph(textNode("Hello world"))},
			},
			want: "Hello world",
		},
		{
			name: "複数段落は改行で結合される",
			doc: model.Document{
				Content: []model.Node{
					paragraph(textNode("1行目")),
					paragraph(textNode("2行目")),
				},
			},
			want: "1行目\n2行目",
		},
		{
			name: "空の段落は除去される",
			doc: model.Document{
				Content: []model.Node{
					paragraph(textNode("前")),
					paragraph(),
					paragraph(textNode("   ")),
					paragraph(textNode("後")),
				},
			},
			want: "前\n後",
		},
		{
			name: "hardBreakは段落内の改行になる",
			doc: model.Document{
				Content: []model.Node{
					paragraph(
						textNode("上"),
						model.Node{Type: model.NodeTypeHardBreak},
						textNode("下"),
					),
				},
			},
			want: "上\n下",
		},
		{
			name: "linkマークはテキストをhrefで置き換える",
			doc: model.Document{
				Content: []model.Node{
					paragraph(
						textNode("詳細は"),
						textNode("こちら", linkMark("https://example.com/page")),
						textNode("を参照"),
					),
				},
			},
			want: "詳細は https://example.com/page を参照",
		},
		{
			name: "httpスキームはhttpsに正規化される",
			doc: model.Document{
				Content: []model.Node{
					paragraph(textNode("link", linkMark("http://example.com"))),
				},
			},
			want: "https://example.com",
		},
		{
			name: "スキーム以外の位置のhttp://は書き換えない",
			doc: model.Document{
				Content: []model.Node{
					paragraph(textNode("link", linkMark("https://a.example/?u=http://b.example"))),
				},
			},
			want: "https://a.example/?u=http://b.example",
		},
		{
			name: "link以外のマークは無視される",
			doc: model.Document{
				Content: []model.Node{
					paragraph(textNode("強調テキスト", model.Mark{Type: "bold"})),
				},
			},
			want: "強調テキスト",
		},
		{
			name: "複数マークは最初のlinkのみ適用される",
			doc: model.Document{
				Content: []model.Node{
					paragraph(textNode("dual", model.Mark{Type: "bold"}, linkMark("https://a.example"), linkMark("https://b.example"))),
				},
			},
			want: "https://a.example",
		},
		{
			name: "hrefが空のlinkマークはテキストをそのまま残す",
			doc: model.Document{
				Content: []model.Node{
					paragraph(textNode("empty-href", linkMark(""))),
				},
			},
			want: "empty-href",
		},
		{
			name: "paragraph以外のトップレベルノードは無視される",
			doc: model.Document{
				Content: []model.Node{
					{Type: "heading", Content: []model.Node{textNode("見出し")}},
					paragraph(textNode("本文")),
				},
			},
			want: "本文",
		},
		{
			name: "段落の前後空白はトリムされる",
			doc: model.Document{
				Content: []model.Node{
					paragraph(textNode("  spaced  ")),
				},
			},
			want: "spaced",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FlattenText(tt.doc)
			if got != tt.want {
				t.Errorf("FlattenText() = %q, want %q", got, tt.want)
			}
		})
	}
}
