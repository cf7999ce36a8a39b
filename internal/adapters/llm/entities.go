package llm

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"

	"github.com/wardenbot/warden/internal/utils/text"
)

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// BenignLabel is the verdict for accounts the classifier considers
// harmless. Callers treat it as the absence of an AI signal.
const BenignLabel = "regular member"

// CandidateLabels returns the closed label set every backend classifies
// into. Order matters for the zero-shot backend, the benign label last.
func CandidateLabels() []string {
	return []string{
		"spam bot",
		"raid account",
		"impersonator",
		"compromised account",
		BenignLabel,
	}
}

// SystemPrompt instructs chat-style backends to answer within the label
// set, one line, machine-parseable.
const SystemPrompt = "You are a moderation analyst for an online community. " +
	"Given a member profile summary, classify the account as exactly one of: " +
	"spam bot, raid account, impersonator, compromised account, regular member. " +
	"Reply with a single line of the form label|confidence where confidence is " +
	"a number between 0 and 1. No explanations."

// Verdict is a classifier's opinion of a member.
type Verdict struct {
	Label      string
	Confidence float64
}

// Clamped returns the verdict with confidence forced into [0, 1].
func (v Verdict) Clamped() Verdict {
	if v.Confidence < 0 {
		v.Confidence = 0
	}
	if v.Confidence > 1 {
		v.Confidence = 1
	}
	return v
}

// ParseVerdict parses the one-line label|confidence reply contract.
// Anything outside the label set or the expected shape is an error, a
// degraded assessment beats a fabricated verdict.
func ParseVerdict(raw string) (*Verdict, error) {
	line := strings.TrimSpace(raw)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	line = strings.Trim(line, "`")
	parts := strings.Split(line, "|")
	if len(parts) != 2 {
		return nil, fmt.Errorf("malformed verdict %q", raw)
	}
	label := strings.ToLower(strings.TrimSpace(parts[0]))
	if !validLabel(label) {
		return nil, fmt.Errorf("unexpected verdict label %q", label)
	}
	confidence, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, fmt.Errorf("malformed verdict confidence %q", strings.TrimSpace(parts[1]))
	}
	verdict := Verdict{Label: label, Confidence: confidence}.Clamped()
	return &verdict, nil
}

func validLabel(label string) bool {
	for _, candidate := range CandidateLabels() {
		if label == candidate {
			return true
		}
	}
	return false
}

// MemberDossier is the compact member summary handed to a backend. It
// carries profile shape only, never message content.
type MemberDossier struct {
	Username         string
	DisplayName      string
	AccountAgeDays   float64
	ReputationScore  int
	RecentThreats    int
	ThreatKinds      []string
	HasDefaultAvatar bool
}

// Render flattens the dossier into the prompt body shared by every
// backend.
func (d MemberDossier) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "username: %s\n", d.Username)
	display := text.StripDecorations(d.DisplayName)
	if display != "" && display != d.Username {
		fmt.Fprintf(&b, "display name: %s\n", display)
	}
	if text.HasConfusables(d.Username) || text.HasConfusables(d.DisplayName) {
		b.WriteString("note: name mixes latin and cyrillic lookalikes\n")
	}
	if n := text.CountAnomalousRunes(d.Username); n > 0 {
		fmt.Fprintf(&b, "note: username carries %d non-standard characters\n", n)
	}
	fmt.Fprintf(&b, "account age: %.1f days\n", d.AccountAgeDays)
	fmt.Fprintf(&b, "reputation: %d\n", d.ReputationScore)
	fmt.Fprintf(&b, "recent threat events: %d", d.RecentThreats)
	if len(d.ThreatKinds) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(d.ThreatKinds, ", "))
	}
	b.WriteString("\n")
	if d.HasDefaultAvatar {
		b.WriteString("avatar: default\n")
	}
	return b.String()
}

// Fingerprint keys the verdict cache. Dossiers that render identically
// share a verdict.
func (d MemberDossier) Fingerprint() string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(d.Render())))
}
