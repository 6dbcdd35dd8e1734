// Package model はドメインモデルを定義する。
package model

// Document はエディタからシリアライズされたリッチテキスト文書を表す。
// 型付きノードのツリーで、トップレベルは段落の列。
// 変換パイプラインに渡した後は変更してはならない。
type Document struct {
	Type    string `json:"type,omitempty"`
	Content []Node `json:"content,omitempty"`
}

// Node は文書内の1ノードを表す。
// Typeにより意味が変わる: "paragraph"はContentを持ち、
// "text"はTextとMarksを持ち、"hardBreak"は改行のみを表す。
type Node struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Marks   []Mark `json:"marks,omitempty"`
	Content []Node `json:"content,omitempty"`
}

// Mark はテキストノードに付与される装飾を表す。
// 変換に影響するのはlinkのみ。bold/italic等は無視される。
type Mark struct {
	Type  string    `json:"type"`
	Attrs MarkAttrs `json:"attrs,omitempty"`
}

// MarkAttrs はマークの属性を表す。
type MarkAttrs struct {
	Href string `json:"href,omitempty"`
}

// ノード種別。
const (
	NodeTypeParagraph = "paragraph"
	NodeTypeText      = "text"
	NodeTypeHardBreak = "hardBreak"
)

// MarkTypeLink はリンクマークの種別。
const MarkTypeLink = "link"

// IsEmpty は文書がコンテンツを持たないかどうかを返す。
func (d Document) IsEmpty() bool {
	return len(d.Content) == 0
}
