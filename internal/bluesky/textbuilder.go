package bluesky

import (
	"strings"
	"time"
)

// リッチテキストファセットのfeature種別。
const (
	featureMention = "app.bsky.richtext.facet#mention"
	featureLink    = "app.bsky.richtext.facet#link"
	featureTag     = "app.bsky.richtext.facet#tag"
)

// PostRecord はapp.bsky.feed.postのレコードを表す。
type PostRecord struct {
	Type      string  `json:"$type"`
	Text      string  `json:"text"`
	Facets    []Facet `json:"facets,omitempty"`
	CreatedAt string  `json:"createdAt"`
}

// Facet は本文の一部区間に意味を付与するリッチテキストファセットを表す。
// 区間はUTF-8のバイトオフセットで指定する。
type Facet struct {
	Index    FacetIndex     `json:"index"`
	Features []FacetFeature `json:"features"`
}

// FacetIndex はファセットが指す本文のバイト区間。
type FacetIndex struct {
	ByteStart int `json:"byteStart"`
	ByteEnd   int `json:"byteEnd"`
}

// FacetFeature はファセットの種別ごとの属性を表す。
// メンションのDIDは送信時に解決されるため、それまでは内部のhandleに
// 元のハンドルを保持する。
type FacetFeature struct {
	Type string `json:"$type"`
	DID  string `json:"did,omitempty"`
	URI  string `json:"uri,omitempty"`
	Tag  string `json:"tag,omitempty"`

	handle string
}

// TextBuilder は投稿本文とファセットをセグメント順に組み立てる。
// 各メソッドの呼び出し順が本文の並び順になる。
type TextBuilder struct {
	text   strings.Builder
	facets []Facet
}

// NewTextBuilder はTextBuilderの新しいインスタンスを生成する。
func NewTextBuilder() *TextBuilder {
	return &TextBuilder{}
}

// Text は本文にテキストをそのまま追加する。
func (b *TextBuilder) Text(s string) *TextBuilder {
	b.text.WriteString(s)
	return b
}

// NewLine は本文に改行を追加する。
func (b *TextBuilder) NewLine() *TextBuilder {
	b.text.WriteString("\n")
	return b
}

// Mention は@メンションを追加する。
// 本文には@付きハンドルがそのまま入り、ファセットには@を除いたハンドルを
// 保持する。DIDへの解決は送信時に行われる。
func (b *TextBuilder) Mention(mention string) *TextBuilder {
	start := b.text.Len()
	b.text.WriteString(mention)
	b.facets = append(b.facets, Facet{
		Index: FacetIndex{ByteStart: start, ByteEnd: b.text.Len()},
		Features: []FacetFeature{{
			Type:   featureMention,
			handle: strings.TrimPrefix(mention, "@"),
		}},
	})
	return b
}

// Tag は#ハッシュタグを追加する。
// 本文には#付きタグがそのまま入り、ファセットには#を除いたタグが入る。
func (b *TextBuilder) Tag(tag string) *TextBuilder {
	start := b.text.Len()
	b.text.WriteString(tag)
	b.facets = append(b.facets, Facet{
		Index: FacetIndex{ByteStart: start, ByteEnd: b.text.Len()},
		Features: []FacetFeature{{
			Type: featureTag,
			Tag:  strings.TrimPrefix(tag, "#"),
		}},
	})
	return b
}

// Link はURLを追加する。
func (b *TextBuilder) Link(uri string) *TextBuilder {
	start := b.text.Len()
	b.text.WriteString(uri)
	b.facets = append(b.facets, Facet{
		Index: FacetIndex{ByteStart: start, ByteEnd: b.text.Len()},
		Features: []FacetFeature{{
			Type: featureLink,
			URI:  uri,
		}},
	})
	return b
}

// Build は組み立てた本文とファセットから投稿レコードを生成する。
func (b *TextBuilder) Build() *PostRecord {
	return &PostRecord{
		Type:      "app.bsky.feed.post",
		Text:      b.text.String(),
		Facets:    b.facets,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
}
