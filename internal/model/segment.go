package model

// SegmentKind はフラット化済みテキストの分類単位の種別を表す。
type SegmentKind string

const (
	// SegmentText は通常のテキスト片。
	SegmentText SegmentKind = "text"
	// SegmentSpace は半角スペース1文字。
	SegmentSpace SegmentKind = "space"
	// SegmentNewLine は改行1文字。
	SegmentNewLine SegmentKind = "new_line"
	// SegmentLink はURL。
	SegmentLink SegmentKind = "link"
	// SegmentMention は@メンション。
	SegmentMention SegmentKind = "mention"
	// SegmentHashtag は#ハッシュタグ。
	SegmentHashtag SegmentKind = "hashtag"
)

// Segment は分類済みのテキスト片を表す。
// 列の順序は元テキストの左から右の順序そのものであり、
// 各Valueを順に連結すると切り詰め後のフラット化テキストを正確に再構成できる。
type Segment struct {
	Kind  SegmentKind
	Value string
}
