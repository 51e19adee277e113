package schema

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clerrors "github.com/Aman-CERP/claridoc/internal/errors"
	"github.com/Aman-CERP/claridoc/internal/llm"
)

type stubClient struct {
	reply  string
	err    error
	prompt string
}

func (s *stubClient) Generate(_ context.Context, req llm.Request) (string, error) {
	s.prompt = req.Prompt
	return s.reply, s.err
}

func (s *stubClient) Model() string { return "stub" }

func TestLookup(t *testing.T) {
	s, err := Lookup(" Insurance_Policy ")
	require.NoError(t, err)
	assert.Equal(t, InsurancePolicy, s.Type)
	assert.Contains(t, s.KeywordFields(), "coverage_type")
	assert.NotContains(t, s.KeywordFields(), "notes")

	_, err = Lookup("recipe")
	assert.True(t, clerrors.HasCode(err, clerrors.ErrCodeSchemaDetection))
}

func TestAll_IsOrdered(t *testing.T) {
	all := All()

	require.Len(t, all, 3)
	assert.Equal(t, HRPolicy, all[0].Type)
	assert.Equal(t, InsurancePolicy, all[1].Type)
	assert.Equal(t, LegalContract, all[2].Type)
}

func TestParseRecord_Normalizes(t *testing.T) {
	// Given: raw model output with mixed shapes
	s, _ := Lookup("insurance_policy")
	raw := map[string]any{
		"coverage_type":     []any{"life", " dental ", ""},
		"policy_type":       "group term",
		"notes":             []any{"line one", "line two"},
		"insured_parties":   nil,
		"unrelated":         "dropped",
		"added_new_keyword": true,
	}

	// When: parsing
	rec, err := s.ParseRecord(raw)
	require.NoError(t, err)

	// Then: lists are clean and unknown keys are gone
	assert.Equal(t, []string{"life", "dental"}, rec.Fields["coverage_type"])
	assert.Equal(t, []string{"group term"}, rec.Fields["policy_type"])
	assert.Equal(t, []string{"line one\nline two"}, rec.Fields["notes"])
	assert.NotContains(t, rec.Fields, "insured_parties")
	assert.NotContains(t, rec.Fields, "unrelated")
	assert.True(t, rec.AddedNewKeyword)
}

func TestParseRecord_RejectsMalformedValues(t *testing.T) {
	s, _ := Lookup("legal_contract")

	_, err := s.ParseRecord(map[string]any{"parties": []any{"a", 3.0}})
	assert.True(t, clerrors.HasCode(err, clerrors.ErrCodeExtractionFailed))

	_, err = s.ParseRecord(map[string]any{"added_new_keyword": 7.0})
	assert.True(t, clerrors.HasCode(err, clerrors.ErrCodeExtractionFailed))
}

func TestRecord_KeywordsAndMetadata(t *testing.T) {
	s, _ := Lookup("insurance_policy")
	rec := Record{
		Fields: map[string][]string{
			"coverage_type": {"life"},
			"exclusions":    {"war"},
		},
		AddedNewKeyword: true,
	}

	assert.Equal(t, map[string][]string{"coverage_type": {"life"}}, rec.Keywords(s))
	assert.Equal(t, map[string]any{"coverage_type": []string{"life"}, "exclusions": "war"}, rec.Metadata(s))
}

func TestValidate_RejectsForeignField(t *testing.T) {
	s, _ := Lookup("hr_policy")

	err := s.Validate(Record{Fields: map[string][]string{"jurisdiction": {"x"}}})

	assert.Error(t, err)
}

func TestFilterQueryMetadata(t *testing.T) {
	// Given: raw query metadata with explanatory fields and the flag
	raw := map[string]any{
		"coverage_type":     []string{"dental"},
		"notes":             "asks about waiting period",
		"obligations":       "none",
		"exclusions":        "none",
		"added_new_keyword": true,
	}

	// When: filtering
	got := FilterQueryMetadata(raw)

	// Then: only filterable attributes remain
	assert.Equal(t, map[string]any{"coverage_type": []string{"dental"}}, got)
	assert.Equal(t, map[string][]string{"coverage_type": {"dental"}}, QueryFilter(got))
}

func TestDetector_OverrideSkipsModel(t *testing.T) {
	client := &stubClient{err: errors.New("should not be called")}

	s, err := NewDetector(client, "hr_policy").Detect(context.Background(), []string{"x"})

	require.NoError(t, err)
	assert.Equal(t, HRPolicy, s.Type)
	assert.Empty(t, client.prompt)
}

func TestDetector_ParsesTag(t *testing.T) {
	client := &stubClient{reply: "\"legal_contract\".\n"}

	s, err := NewDetector(client, "").Detect(context.Background(), []string{"p1", "p2", "p3"})

	require.NoError(t, err)
	assert.Equal(t, LegalContract, s.Type)
	assert.Contains(t, client.prompt, "[page 2]")
	assert.NotContains(t, client.prompt, "[page 3]")
}

func TestDetector_LongPageIsCutOnRuneBoundary(t *testing.T) {
	// Given: an opening page of multibyte text longer than the sample
	client := &stubClient{reply: "hr_policy"}
	page := "x" + strings.Repeat("ü", detectSample)

	// When: detecting
	_, err := NewDetector(client, "").Detect(context.Background(), []string{page})

	// Then: the prompt is valid UTF-8 and carries exactly the sample
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(client.prompt))
	assert.Contains(t, client.prompt, "x"+strings.Repeat("ü", detectSample-1)+"\n")
}

func TestDetector_Failures(t *testing.T) {
	_, err := NewDetector(&stubClient{reply: "cookbook"}, "").Detect(context.Background(), []string{"x"})
	assert.True(t, clerrors.HasCode(err, clerrors.ErrCodeSchemaDetection))

	_, err = NewDetector(&stubClient{err: errors.New("quota")}, "").Detect(context.Background(), []string{"x"})
	assert.True(t, clerrors.HasCode(err, clerrors.ErrCodeSchemaDetection))
}
