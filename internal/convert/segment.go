package convert

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hitoshi/crosspost/internal/model"
)

// entityClass はエンティティ抽出のクラス定義を表す。
// 抽出はentityClassesの並び順（URL → メンション → ハッシュタグ）で行われ、
// この順序がそのまま優先順位になる。
type entityClass struct {
	name    string
	kind    model.SegmentKind
	pattern *regexp.Regexp
}

// entityClasses は抽出対象のエンティティクラスを優先順位順に並べたリスト。
var entityClasses = []entityClass{
	{name: "urls", kind: model.SegmentLink, pattern: regexp.MustCompile(`(?i)https?://[^\s]+`)},
	{name: "mentions", kind: model.SegmentMention, pattern: regexp.MustCompile(`@[\w.]+`)},
	{name: "hashtags", kind: model.SegmentHashtag, pattern: regexp.MustCompile(`#\w+`)},
}

// 分類用の形状パターン。デリミタ間の1実行単位全体に対して照合する。
var (
	linkShapeRe    = regexp.MustCompile(`^(https?://)?[\da-z.-]+\.[a-z.]{2,6}[/\w.-]*$`)
	mentionShapeRe = regexp.MustCompile(`^@[\w.]+$`)
	hashtagShapeRe = regexp.MustCompile(`^#\w+$`)
)

// placeholderEntry は抽出済みエンティティとそのプレースホルダの対応を保持する。
type placeholderEntry struct {
	token string
	value string
	kind  model.SegmentKind
}

// ToSegments は文書をフラット化し、maxLength文字に切り詰めた後、
// 型付きセグメントの列に分割する。
//
// 切り詰めはエンティティ抽出より前に行う。切断位置がエンティティを分断した
// 場合、その断片は復元されずそのままtextとして分類される（既知の挙動であり、
// ここで補正はしない）。出力順は切り詰め後テキストの左から右の順序。
func ToSegments(doc model.Document, maxLength int) []model.Segment {
	text := truncateRunes(FlattenText(doc), maxLength)

	// エンティティ抽出: 一致箇所を一意なプレースホルダに置き換え、
	// 後段のデリミタ分割で再分解されないよう保護する。
	// 同一テキストが複数回出現する場合も、出現ごとに別のプレースホルダを
	// 割り当てて復元を一意にする。
	var restores []placeholderEntry
	for _, class := range entityClasses {
		matches := findEntityMatches(text, class)
		for i, match := range matches {
			token := placeholderToken(text, class.name, i)
			text = strings.Replace(text, match, token, 1)
			restores = append(restores, placeholderEntry{token: token, value: match, kind: class.kind})
		}
	}

	// デリミタ（スペース・改行）でコードポイント単位に走査し、
	// デリミタ間の実行単位を分類する。デリミタ自体もセグメントになる。
	segments := make([]model.Segment, 0)
	var run []rune
	flush := func() {
		if len(run) > 0 {
			segments = append(segments, classifyRun(string(run)))
			run = run[:0]
		}
	}
	for _, r := range text {
		switch r {
		case '\n':
			flush()
			segments = append(segments, model.Segment{Kind: model.SegmentNewLine, Value: "\n"})
		case ' ':
			flush()
			segments = append(segments, model.Segment{Kind: model.SegmentSpace, Value: " "})
		default:
			run = append(run, r)
		}
	}
	flush()

	// プレースホルダ復元: 値がトークンに一致するセグメントを元のエンティティ
	// テキストに戻す。種別は抽出時のクラスで強制的に上書きし、分類結果には
	// 依存しない。
	for _, entry := range restores {
		for i := range segments {
			if segments[i].Value == entry.token {
				segments[i] = model.Segment{Kind: entry.kind, Value: entry.value}
			}
		}
	}

	return segments
}

// findEntityMatches はテキストからクラスに一致する部分文字列を左から順に返す。
// URLクラスは直前が@である一致（メールアドレス等）を除外する。
func findEntityMatches(text string, class entityClass) []string {
	locs := class.pattern.FindAllStringIndex(text, -1)
	matches := make([]string, 0, len(locs))
	for _, loc := range locs {
		if class.kind == model.SegmentLink && loc[0] > 0 && text[loc[0]-1] == '@' {
			continue
		}
		matches = append(matches, text[loc[0]:loc[1]])
	}
	return matches
}

// placeholderToken は文書内容と衝突しない一意なトークンを生成する。
// トークンはデリミタを含まないため、走査で1実行単位として保持される。
func placeholderToken(text, class string, index int) string {
	token := fmt.Sprintf("{{%s_PLACEHOLDER_%d}}", strings.ToUpper(class), index)
	for strings.Contains(text, token) {
		token = "{" + token + "}"
	}
	return token
}

// classifyRun はデリミタ間の1実行単位をセグメントに分類する。
// 照合はリンク → メンション → ハッシュタグの順で行い、
// どれにも一致しない場合はtextになる。
func classifyRun(run string) model.Segment {
	switch {
	case linkShapeRe.MatchString(run):
		return model.Segment{Kind: model.SegmentLink, Value: run}
	case mentionShapeRe.MatchString(run):
		return model.Segment{Kind: model.SegmentMention, Value: run}
	case hashtagShapeRe.MatchString(run):
		return model.Segment{Kind: model.SegmentHashtag, Value: run}
	default:
		return model.Segment{Kind: model.SegmentText, Value: run}
	}
}

// truncateRunes は文字列をmax文字（コードポイント）に切り詰める。
// 省略記号は付けないハードカット。
func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
