package services

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"pkm-review-api/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq int64

// newTestDB returns a migrated in-memory SQLite database private to the test.
// A single connection keeps every statement on the same in-memory database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, Migrate(context.Background(), db))
	return db
}

// recordingNotifier captures phase notifications instead of sending mail.
type recordingNotifier struct {
	results []*ToggleResult
}

func (n *recordingNotifier) PhaseChanged(result *ToggleResult, actorID int) {
	n.results = append(n.results, result)
}

func newTestController(db *gorm.DB) (*PhaseController, *recordingNotifier) {
	n := &recordingNotifier{}
	c := NewPhaseController(db).WithNotifier(n).WithFinalizer(NewReviewAggregator(db).WithQuorum(0))
	return c, n
}

const (
	testPkmType  = 1
	testTeamID   = 10
	testStudent  = 100
	testReviewer = 200
	testAdmin    = 900
)

// testCatalog holds the ids of the criteria created by seedCatalog.
type testCatalog struct {
	Admin       []models.AdminCriterion
	Substantive []models.SubstantiveCriterion
}

// seedCatalog creates two administrative criteria and two substantive
// criteria weighted 10 with scores in [1,10].
func seedCatalog(t *testing.T, db *gorm.DB) testCatalog {
	t.Helper()
	cat := testCatalog{
		Admin: []models.AdminCriterion{
			{PkmTypeID: testPkmType, Name: "Format", SortOrder: 1},
			{PkmTypeID: testPkmType, Name: "Page limit", SortOrder: 2},
		},
		Substantive: []models.SubstantiveCriterion{
			{PkmTypeID: testPkmType, Name: "Originality", Weight: decimal.NewFromInt(10), MinScore: 1, MaxScore: 10, SortOrder: 1},
			{PkmTypeID: testPkmType, Name: "Method", Weight: decimal.NewFromInt(10), MinScore: 1, MaxScore: 10, SortOrder: 2},
		},
	}
	require.NoError(t, db.Create(&cat.Admin).Error)
	require.NoError(t, db.Create(&cat.Substantive).Error)
	return cat
}

func seedTeam(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Create(&models.Team{TeamID: testTeamID, Name: "Team A"}).Error)
	require.NoError(t, db.Create(&models.TeamMember{TeamID: testTeamID, UserID: testStudent, IsLeader: true}).Error)
}

func seedProposal(t *testing.T, db *gorm.DB, status models.ProposalStatus) *models.Proposal {
	t.Helper()
	p := &models.Proposal{
		TeamID:    testTeamID,
		PkmTypeID: testPkmType,
		Title:     "Proposal " + string(status),
		Status:    status,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func seedAssignment(t *testing.T, db *gorm.DB, proposalID, reviewerID, slot int) *models.ReviewAssignment {
	t.Helper()
	a := &models.ReviewAssignment{ProposalID: proposalID, ReviewerID: reviewerID, SlotNumber: slot}
	require.NoError(t, db.Create(a).Error)
	return a
}

// seedCompleteReview records a complete administrative checklist and a
// substantive sheet scoring both criteria with the given values.
func seedCompleteReview(t *testing.T, db *gorm.DB, cat testCatalog, assignmentID int, scores ...int) {
	t.Helper()
	admin := models.AdministrativeAssessment{AssignmentID: assignmentID, IsComplete: true}
	for _, c := range cat.Admin {
		admin.Entries = append(admin.Entries, models.AdministrativeEntry{CriterionID: c.CriterionID})
	}
	require.NoError(t, db.Create(&admin).Error)

	seedSubstantive(t, db, cat, assignmentID, scores...)
}

func seedSubstantive(t *testing.T, db *gorm.DB, cat testCatalog, assignmentID int, scores ...int) {
	t.Helper()
	sub := models.SubstantiveAssessment{AssignmentID: assignmentID, TotalScore: decimal.Zero}
	for i, score := range scores {
		sub.Entries = append(sub.Entries, models.SubstantiveEntry{CriterionID: cat.Substantive[i].CriterionID, Score: score})
	}
	require.NoError(t, db.Create(&sub).Error)
}

func reloadProposal(t *testing.T, db *gorm.DB, id int) models.Proposal {
	t.Helper()
	var p models.Proposal
	require.NoError(t, db.Where("proposal_id = ?", id).Take(&p).Error)
	return p
}

func setPhase(t *testing.T, db *gorm.DB, phase models.Phase) {
	t.Helper()
	require.NoError(t, db.Model(&models.SystemPhase{}).
		Where("id = ?", models.SystemPhaseRowID).
		Update("current_phase", phase).Error)
}
