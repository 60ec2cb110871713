//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"

	"admitdesk/internal/applicant/models"
	"admitdesk/internal/applicant/store"
	"admitdesk/internal/applicant/store/postgres"
	"admitdesk/pkg/testutil/containers"
)

type ApplicantStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *postgres.Store
}

func TestApplicantStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ApplicantStoreSuite))
}

func (s *ApplicantStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = postgres.New(s.pg.DB)
}

func (s *ApplicantStoreSuite) SetupTest() {
	err := s.pg.TruncateTables(context.Background(), "applicant_docs", "applicants")
	s.Require().NoError(err)
}

func newApplicant(code string) *models.Applicant {
	return &models.Applicant{
		StudentCode:        code,
		DossierCode:        "HS-2023-0042",
		FullName:           "Tran Thi B",
		Email:              "b.tran@example.edu",
		ReceivedAt:         time.Date(2023, 9, 5, 0, 0, 0, 0, time.UTC),
		ChecklistVersionID: 1, // seeded by the migration
		Status:             models.StatusSaved,
		CreatedAt:          time.Now().UTC(),
		Docs: []models.Doc{
			{Code: "transcript", DisplayName: "Transcript", Quantity: 2, OrderNo: 1},
			{Code: "degree", DisplayName: "Degree certificate", Quantity: 1, OrderNo: 2},
		},
	}
}

func (s *ApplicantStoreSuite) TestCreateAndGetWithDocs() {
	ctx := context.Background()
	a := newApplicant("2310000123")
	s.Require().NoError(s.store.Create(ctx, a))

	got, err := s.store.Get(ctx, "2310000123", false)
	s.Require().NoError(err)
	s.Equal("Tran Thi B", got.FullName)
	s.Equal("b.tran@example.edu", got.Email)
	s.Require().Len(got.Docs, 2)
	s.Equal("transcript", got.Docs[0].Code, "docs come back in order")
	s.Nil(got.DateOfBirth)

	s.ErrorIs(s.store.Create(ctx, newApplicant("2310000123")), store.ErrDuplicate)
}

func (s *ApplicantStoreSuite) TestUpdateReplacesDocs() {
	ctx := context.Background()
	a := newApplicant("2310000123")
	s.Require().NoError(s.store.Create(ctx, a))

	a.FullName = "Tran Thi Binh"
	a.Docs = []models.Doc{{Code: "photo", DisplayName: "ID photo", Quantity: 4, OrderNo: 3}}
	s.Require().NoError(s.store.Update(ctx, a))

	got, err := s.store.Get(ctx, "2310000123", false)
	s.Require().NoError(err)
	s.Equal("Tran Thi Binh", got.FullName)
	s.Require().Len(got.Docs, 1)
	s.Equal("photo", got.Docs[0].Code)

	s.ErrorIs(s.store.Update(ctx, newApplicant("9999999999")), store.ErrNotFound)
}

func (s *ApplicantStoreSuite) TestSoftDeletedRowsAreFiltered() {
	ctx := context.Background()
	a := newApplicant("2310000123")
	now := time.Now().UTC()
	a.DeletedAt = &now
	a.DeletedBy = "Nguyen Van A"
	a.DeletedReason = "entered twice"
	s.Require().NoError(s.store.Create(ctx, a))

	_, err := s.store.Get(ctx, "2310000123", false)
	s.ErrorIs(err, store.ErrNotFound)

	got, err := s.store.Get(ctx, "2310000123", true)
	s.Require().NoError(err)
	s.NotNil(got.DeletedAt)
	s.Equal("entered twice", got.DeletedReason)

	results, err := s.store.Search(ctx, store.Query{})
	s.Require().NoError(err)
	s.Empty(results)

	results, err = s.store.Search(ctx, store.Query{IncludeDeleted: true})
	s.Require().NoError(err)
	s.Len(results, 1)
}

func (s *ApplicantStoreSuite) TestLegacyStatusDeletedIsFiltered() {
	ctx := context.Background()
	a := newApplicant("2310000123")
	a.Status = "deleted"
	s.Require().NoError(s.store.Create(ctx, a))

	_, err := s.store.Get(ctx, "2310000123", false)
	s.ErrorIs(err, store.ErrNotFound, "status='deleted' rows without deleted_at are still hidden")
}

func (s *ApplicantStoreSuite) TestSearchMatchesSubstring() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, newApplicant("2310000123")))

	other := newApplicant("2310000456")
	other.DossierCode = "HS-2023-0099"
	other.FullName = "Le Van C"
	s.Require().NoError(s.store.Create(ctx, other))

	results, err := s.store.Search(ctx, store.Query{Text: "le van"})
	s.Require().NoError(err)
	s.Require().Len(results, 1)
	s.Equal("2310000456", results[0].StudentCode)

	results, err = s.store.Search(ctx, store.Query{Text: "0099"})
	s.Require().NoError(err)
	s.Len(results, 1)
}

func (s *ApplicantStoreSuite) TestHardDeleteRemovesChildren() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, newApplicant("2310000123")))

	s.Require().NoError(s.store.HardDelete(ctx, "2310000123"))

	_, err := s.store.Get(ctx, "2310000123", true)
	s.ErrorIs(err, store.ErrNotFound)

	var count int
	err = s.pg.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM applicant_docs WHERE student_code = $1", "2310000123").Scan(&count)
	s.Require().NoError(err)
	s.Zero(count)

	s.ErrorIs(s.store.HardDelete(ctx, "2310000123"), store.ErrNotFound)
}
