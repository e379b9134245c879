package review

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Poltr/internal/atproto/pds"
	"Poltr/internal/core/arguments"
)

type fakeReviewRepo struct {
	invitations map[string]map[string]bool // argumentURI -> inviteeDID
	responses   map[string]map[string]bool // argumentURI -> reviewerDID
	counts      map[string]Counts
	eligible    []string
}

func newFakeReviewRepo() *fakeReviewRepo {
	return &fakeReviewRepo{
		invitations: map[string]map[string]bool{},
		responses:   map[string]map[string]bool{},
		counts:      map[string]Counts{},
	}
}

func (f *fakeReviewRepo) invite(argumentURI, did string) {
	if f.invitations[argumentURI] == nil {
		f.invitations[argumentURI] = map[string]bool{}
	}
	f.invitations[argumentURI][did] = true
}

func (f *fakeReviewRepo) ListPendingForReviewer(ctx context.Context, reviewerDID string) ([]PendingInvitation, error) {
	var out []PendingInvitation
	for arg, invitees := range f.invitations {
		if invitees[reviewerDID] && !f.responses[arg][reviewerDID] {
			out = append(out, PendingInvitation{ArgumentURI: arg})
		}
	}
	return out, nil
}

func (f *fakeReviewRepo) InvitationExists(ctx context.Context, argumentURI, inviteeDID string) (bool, error) {
	return f.invitations[argumentURI][inviteeDID], nil
}

func (f *fakeReviewRepo) ResponseExists(ctx context.Context, argumentURI, reviewerDID string) (bool, error) {
	return f.responses[argumentURI][reviewerDID], nil
}

func (f *fakeReviewRepo) CountInvitations(ctx context.Context, argumentURI string) (int, error) {
	return len(f.invitations[argumentURI]), nil
}

func (f *fakeReviewRepo) EligibleReviewers(ctx context.Context, argumentURI, authorDID string) ([]string, error) {
	var out []string
	for _, did := range f.eligible {
		if did == authorDID || f.invitations[argumentURI][did] {
			continue
		}
		out = append(out, did)
	}
	return out, nil
}

func (f *fakeReviewRepo) CountResponses(ctx context.Context, argumentURI string) (Counts, error) {
	return f.counts[argumentURI], nil
}

func (f *fakeReviewRepo) ListResponses(ctx context.Context, argumentURI string) ([]Response, error) {
	var out []Response
	for did := range f.responses[argumentURI] {
		out = append(out, Response{ArgumentURI: argumentURI, ReviewerDID: did})
	}
	return out, nil
}

type fakeArgRepo struct {
	byURI       map[string]*arguments.Argument
	needInvites []*arguments.Argument
	needCopies  []*arguments.Argument
	govLinks    map[string]string
}

func newFakeArgRepo() *fakeArgRepo {
	return &fakeArgRepo{byURI: map[string]*arguments.Argument{}, govLinks: map[string]string{}}
}

func (f *fakeArgRepo) ListByBallot(ctx context.Context, ballotRKey string, limit int) ([]*arguments.Argument, error) {
	return nil, nil
}

func (f *fakeArgRepo) GetByURI(ctx context.Context, uri string) (*arguments.Argument, error) {
	arg, ok := f.byURI[uri]
	if !ok {
		return nil, arguments.ErrArgumentNotFound
	}
	return arg, nil
}

func (f *fakeArgRepo) ListPendingCrosspost(ctx context.Context, limit int) ([]*arguments.Argument, error) {
	return nil, nil
}

func (f *fakeArgRepo) SetBskyPost(ctx context.Context, uri, postURI, postCID string) error {
	return nil
}

func (f *fakeArgRepo) ListNeedingInvitations(ctx context.Context, quorum, limit int) ([]*arguments.Argument, error) {
	return f.needInvites, nil
}

func (f *fakeArgRepo) ListApprovedNeedingCopy(ctx context.Context, limit int) ([]*arguments.Argument, error) {
	return f.needCopies, nil
}

func (f *fakeArgRepo) SetGovernanceURI(ctx context.Context, uri, governanceURI string) error {
	f.govLinks[uri] = governanceURI
	return nil
}

type fakeGov struct {
	created []map[string]any
	byColl  map[string]int
}

func newFakeGov() *fakeGov { return &fakeGov{byColl: map[string]int{}} }

func (f *fakeGov) DID() string { return "did:plc:governance" }

func (f *fakeGov) CreateRecord(ctx context.Context, collection string, record any) (*pds.RecordResult, error) {
	f.byColl[collection]++
	if m, ok := record.(map[string]any); ok {
		f.created = append(f.created, m)
	}
	return &pds.RecordResult{
		URI: "at://did:plc:governance/" + collection + "/3krec" + string(rune('a'+len(f.created))),
		CID: "bafygov",
	}, nil
}

func testCriteria() []Criterion {
	return []Criterion{{Key: "factual_accuracy", Label: "Factual Accuracy"}, {Key: "clarity", Label: "Clarity"}}
}

func newReviewService(repo *fakeReviewRepo, args *fakeArgRepo, gov *fakeGov) Service {
	return NewService(repo, args, gov, 10, testCriteria(), slog.New(slog.DiscardHandler))
}

func TestSubmit_NotInvited(t *testing.T) {
	repo := newFakeReviewRepo()
	svc := newReviewService(repo, newFakeArgRepo(), newFakeGov())

	_, err := svc.Submit(context.Background(), "did:plc:reviewer", SubmitRequest{
		ArgumentURI: "at://did:plc:user/app.ch.poltr.ballot.argument/3karg",
		Criteria:    json.RawMessage(`{"clarity":true}`),
		Vote:        VoteApprove,
	})
	assert.ErrorIs(t, err, ErrNotInvited)
}

func TestSubmit_AlreadyReviewed(t *testing.T) {
	repo := newFakeReviewRepo()
	argURI := "at://did:plc:user/app.ch.poltr.ballot.argument/3karg"
	repo.invite(argURI, "did:plc:reviewer")
	repo.responses[argURI] = map[string]bool{"did:plc:reviewer": true}
	svc := newReviewService(repo, newFakeArgRepo(), newFakeGov())

	_, err := svc.Submit(context.Background(), "did:plc:reviewer", SubmitRequest{
		ArgumentURI: argURI,
		Criteria:    json.RawMessage(`{}`),
		Vote:        VoteApprove,
	})
	assert.ErrorIs(t, err, ErrAlreadyReviewed)
}

func TestSubmit_RejectRequiresJustification(t *testing.T) {
	repo := newFakeReviewRepo()
	argURI := "at://did:plc:user/app.ch.poltr.ballot.argument/3karg"
	repo.invite(argURI, "did:plc:reviewer")
	svc := newReviewService(repo, newFakeArgRepo(), newFakeGov())

	_, err := svc.Submit(context.Background(), "did:plc:reviewer", SubmitRequest{
		ArgumentURI: argURI,
		Criteria:    json.RawMessage(`{}`),
		Vote:        VoteReject,
	})
	assert.ErrorIs(t, err, ErrJustificationRequired)
}

func TestSubmit_WritesGovernanceRecord(t *testing.T) {
	repo := newFakeReviewRepo()
	gov := newFakeGov()
	argURI := "at://did:plc:user/app.ch.poltr.ballot.argument/3karg"
	repo.invite(argURI, "did:plc:reviewer")
	svc := newReviewService(repo, newFakeArgRepo(), gov)

	uri, err := svc.Submit(context.Background(), "did:plc:reviewer", SubmitRequest{
		ArgumentURI:   argURI,
		Criteria:      json.RawMessage(`{"clarity":true}`),
		Vote:          VoteReject,
		Justification: "unclear sourcing",
	})
	require.NoError(t, err)
	assert.Contains(t, uri, "did:plc:governance")

	require.Len(t, gov.created, 1)
	record := gov.created[0]
	assert.Equal(t, ResponseCollection, record["$type"])
	assert.Equal(t, argURI, record["argument"])
	assert.Equal(t, "did:plc:reviewer", record["reviewer"])
	assert.Equal(t, VoteReject, record["vote"])
	assert.Equal(t, "unclear sourcing", record["justification"])
}

func TestStatus_ReviewsOnlyForAuthor(t *testing.T) {
	repo := newFakeReviewRepo()
	args := newFakeArgRepo()
	argURI := "at://did:plc:author/app.ch.poltr.ballot.argument/3karg"
	args.byURI[argURI] = &arguments.Argument{URI: argURI, DID: "did:plc:author", ReviewStatus: arguments.StatusPreliminary}
	repo.invite(argURI, "did:plc:reviewer")
	repo.responses[argURI] = map[string]bool{"did:plc:reviewer": true}
	repo.counts[argURI] = Counts{Approvals: 1, Total: 1}
	svc := newReviewService(repo, args, newFakeGov())
	ctx := context.Background()

	asAuthor, err := svc.Status(ctx, "did:plc:author", argURI)
	require.NoError(t, err)
	assert.Equal(t, 10, asAuthor.Quorum)
	assert.Equal(t, 1, asAuthor.Approvals)
	assert.Equal(t, 1, asAuthor.InvitationCount)
	assert.Len(t, asAuthor.Reviews, 1)

	asOther, err := svc.Status(ctx, "did:plc:stranger", argURI)
	require.NoError(t, err)
	assert.Empty(t, asOther.Reviews)
}

func TestStatus_ArgumentNotFound(t *testing.T) {
	svc := newReviewService(newFakeReviewRepo(), newFakeArgRepo(), newFakeGov())

	_, err := svc.Status(context.Background(), "did:plc:x", "at://nope")
	assert.ErrorIs(t, err, ErrArgumentNotFound)
}

func TestCounts_Approvable(t *testing.T) {
	assert.True(t, Counts{Approvals: 10}.Approvable(10))
	assert.False(t, Counts{Approvals: 9}.Approvable(10))
	assert.False(t, Counts{Approvals: 10, Rejections: 1}.Approvable(10))
}

func TestWorker_InvitesUpToRemaining(t *testing.T) {
	repo := newFakeReviewRepo()
	args := newFakeArgRepo()
	gov := newFakeGov()
	argURI := "at://did:plc:author/app.ch.poltr.ballot.argument/3karg"
	args.needInvites = []*arguments.Argument{{URI: argURI, DID: "did:plc:author"}}

	// Seven invitations already exist; quorum ten leaves three to fill.
	for i := 0; i < 7; i++ {
		repo.invite(argURI, "did:plc:invited"+string(rune('a'+i)))
	}
	for i := 0; i < 20; i++ {
		repo.eligible = append(repo.eligible, "did:plc:candidate"+string(rune('a'+i)))
	}

	w := NewWorker(WorkerConfig{Quorum: 10, InviteProbability: 0.35, Interval: time.Minute},
		repo, args, gov, slog.New(slog.DiscardHandler))
	w.rng = func() float64 { return 0 } // every coin lands heads

	w.RunOnce(context.Background())

	assert.Equal(t, 3, gov.byColl[InvitationCollection])
}

func TestWorker_SkipsAuthorAndInvited(t *testing.T) {
	repo := newFakeReviewRepo()
	args := newFakeArgRepo()
	gov := newFakeGov()
	argURI := "at://did:plc:author/app.ch.poltr.ballot.argument/3karg"
	args.needInvites = []*arguments.Argument{{URI: argURI, DID: "did:plc:author"}}
	repo.invite(argURI, "did:plc:already")
	repo.eligible = []string{"did:plc:author", "did:plc:already", "did:plc:fresh"}

	w := NewWorker(WorkerConfig{Quorum: 10, InviteProbability: 1, Interval: time.Minute},
		repo, args, gov, slog.New(slog.DiscardHandler))
	w.rng = func() float64 { return 0 }

	w.RunOnce(context.Background())

	require.Len(t, gov.created, 1)
	assert.Equal(t, "did:plc:fresh", gov.created[0]["invitee"])
}

func TestWorker_ProbabilityGate(t *testing.T) {
	repo := newFakeReviewRepo()
	args := newFakeArgRepo()
	gov := newFakeGov()
	argURI := "at://did:plc:author/app.ch.poltr.ballot.argument/3karg"
	args.needInvites = []*arguments.Argument{{URI: argURI, DID: "did:plc:author"}}
	repo.eligible = []string{"did:plc:a", "did:plc:b"}

	w := NewWorker(WorkerConfig{Quorum: 10, InviteProbability: 0.35, Interval: time.Minute},
		repo, args, gov, slog.New(slog.DiscardHandler))
	w.rng = func() float64 { return 0.9 } // every coin lands tails

	w.RunOnce(context.Background())

	assert.Empty(t, gov.created)
}

func TestWorker_MaterializesApprovedCopies(t *testing.T) {
	repo := newFakeReviewRepo()
	args := newFakeArgRepo()
	gov := newFakeGov()
	argURI := "at://did:plc:user/app.ch.poltr.ballot.argument/3karg"
	args.needCopies = []*arguments.Argument{{
		URI:        argURI,
		DID:        "did:plc:user",
		BallotURI:  "at://did:plc:governance/app.ch.poltr.ballot.entry/3kballot",
		Title:      "Lower emissions",
		Body:       "Because of the alpine glaciers.",
		Type:       arguments.SidePro,
		ReviewStatus: arguments.StatusApproved,
	}}

	w := NewWorker(WorkerConfig{Quorum: 10, InviteProbability: 0.35, Interval: time.Minute},
		repo, args, gov, slog.New(slog.DiscardHandler))

	w.RunOnce(context.Background())

	require.Len(t, gov.created, 1)
	record := gov.created[0]
	assert.Equal(t, ArgumentCollection, record["$type"])
	assert.Equal(t, argURI, record["originalUri"])
	assert.Equal(t, "Lower emissions", record["title"])

	copyURI, ok := args.govLinks[argURI]
	require.True(t, ok)
	assert.Contains(t, copyURI, "did:plc:governance")
}
