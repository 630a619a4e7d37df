package approval

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"hustle-crm/internal/ledger"
	"hustle-crm/internal/partners"
	"hustle-crm/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.Partner{},
		&models.Plot{},
		&models.PlotEmi{},
		&models.Expense{},
		&models.TransactionApproval{},
		&models.Vote{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := EnsureIndexes(db); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}
	return db
}

func newTestWorkflow(t *testing.T, db *gorm.DB) *Workflow {
	t.Helper()
	return NewWorkflow(db, partners.DBDirectory{}, DefaultPolicy())
}

// seedProject создаёт проект и n партнёров, возвращает ID проекта и пользователей.
func seedProject(t *testing.T, db *gorm.DB, n int) (uint, []uint) {
	t.Helper()
	project := models.Project{Name: "Green Valley"}
	if err := db.Create(&project).Error; err != nil {
		t.Fatalf("create project: %v", err)
	}

	userIDs := make([]uint, 0, n)
	logins := []string{"arjun", "priya", "vikram", "meera", "rahul"}
	for i := 0; i < n; i++ {
		user := models.User{Login: logins[i%len(logins)], PasswordHash: "x", FullName: logins[i%len(logins)]}
		if err := db.Create(&user).Error; err != nil {
			t.Fatalf("create user: %v", err)
		}
		if err := db.Create(&models.Partner{ProjectID: project.ID, UserID: user.ID}).Error; err != nil {
			t.Fatalf("create partner: %v", err)
		}
		userIDs = append(userIDs, user.ID)
	}
	return project.ID, userIDs
}

func seedPlot(t *testing.T, db *gorm.DB, projectID uint, price string) *models.Plot {
	t.Helper()
	plot := models.Plot{
		ProjectID:  projectID,
		Number:     7,
		Price:      mustDecimal(t, price),
		PlotStatus: models.PlotStatusAvailable,
	}
	if err := db.Create(&plot).Error; err != nil {
		t.Fatalf("create plot: %v", err)
	}
	return &plot
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return v
}

func reloadPlot(t *testing.T, db *gorm.DB, id uint) *models.Plot {
	t.Helper()
	var plot models.Plot
	if err := db.First(&plot, id).Error; err != nil {
		t.Fatalf("reload plot: %v", err)
	}
	return &plot
}

func addAmountFields(amount string) models.FieldValues {
	return models.FieldValues{"amount": amount}
}

func TestProposeSeedsOneVotePerPartner(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorkflow(t, db)
	projectID, users := seedProject(t, db, 3)
	plot := seedPlot(t, db, projectID, "100000")

	appr, err := w.Propose(users[0], projectID, models.TargetModelPlot, plot.ID,
		addAmountFields("5000"), mustDecimal(t, "5000"))
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if appr.Status != models.ApprovalStatusPending {
		t.Errorf("status = %q, want pending", appr.Status)
	}
	if appr.PublicID == "" {
		t.Error("public id is empty")
	}

	var votes []models.Vote
	if err := db.Where("approval_id = ?", appr.ID).Order("user_id").Find(&votes).Error; err != nil {
		t.Fatal(err)
	}
	if len(votes) != 3 {
		t.Fatalf("got %d votes, want one per partner (3)", len(votes))
	}
	for _, v := range votes {
		if v.UserID == users[0] {
			if v.ApprovalStatus != models.ApprovalStatusApproved || v.VotedAt == nil {
				t.Errorf("initiator vote must be seeded approved, got %+v", v)
			}
		} else if v.ApprovalStatus != models.ApprovalStatusPending {
			t.Errorf("partner %d vote must start pending, got %q", v.UserID, v.ApprovalStatus)
		}
	}
}

func TestProposeRejectsNonPartner(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorkflow(t, db)
	projectID, _ := seedProject(t, db, 2)
	plot := seedPlot(t, db, projectID, "100000")

	outsider := models.User{Login: "outsider", PasswordHash: "x"}
	if err := db.Create(&outsider).Error; err != nil {
		t.Fatal(err)
	}

	_, err := w.Propose(outsider.ID, projectID, models.TargetModelPlot, plot.ID,
		addAmountFields("5000"), mustDecimal(t, "5000"))
	if !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestProposeSingleFlightPerTarget(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorkflow(t, db)
	projectID, users := seedProject(t, db, 2)
	plot := seedPlot(t, db, projectID, "100000")

	first, err := w.Propose(users[0], projectID, models.TargetModelPlot, plot.ID,
		addAmountFields("5000"), mustDecimal(t, "5000"))
	if err != nil {
		t.Fatalf("first Propose: %v", err)
	}

	_, err = w.Propose(users[1], projectID, models.TargetModelPlot, plot.ID,
		addAmountFields("7000"), mustDecimal(t, "7000"))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict while first approval is pending, got %v", err)
	}

	// После закрытия согласования слот освобождается.
	if _, err := w.CastVote(users[1], first.PublicID, models.ApprovalStatusRejected); err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	if _, err := w.Propose(users[1], projectID, models.TargetModelPlot, plot.ID,
		addAmountFields("7000"), mustDecimal(t, "7000")); err != nil {
		t.Fatalf("Propose after resolution must succeed, got %v", err)
	}
}

func TestSinglePartnerResolvesImmediately(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorkflow(t, db)
	projectID, users := seedProject(t, db, 1)
	plot := seedPlot(t, db, projectID, "100000")

	appr, err := w.Propose(users[0], projectID, models.TargetModelPlot, plot.ID,
		addAmountFields("5000"), mustDecimal(t, "5000"))
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if appr.Status != models.ApprovalStatusApproved {
		t.Errorf("single-partner approval must approve immediately, got %q", appr.Status)
	}
	if appr.ResolvedAt == nil {
		t.Error("resolved_at not set")
	}

	got := reloadPlot(t, db, plot.ID)
	if !got.AmountCollected.Equal(mustDecimal(t, "5000")) {
		t.Errorf("amount_collected = %s, want 5000", got.AmountCollected)
	}
}

func TestSingleRejectionVetoes(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorkflow(t, db)
	projectID, users := seedProject(t, db, 3)
	plot := seedPlot(t, db, projectID, "100000")

	appr, err := w.Propose(users[0], projectID, models.TargetModelPlot, plot.ID,
		addAmountFields("5000"), mustDecimal(t, "5000"))
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	voted, err := w.CastVote(users[1], appr.PublicID, models.ApprovalStatusRejected)
	if err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	if voted.Status != models.ApprovalStatusRejected {
		t.Errorf("status = %q, want rejected despite a pending vote", voted.Status)
	}

	// Отклонение отбрасывает патч: леджер не тронут.
	got := reloadPlot(t, db, plot.ID)
	if !got.AmountCollected.IsZero() {
		t.Errorf("rejected approval must not touch the ledger, collected = %s", got.AmountCollected)
	}

	// Третий партнёр опоздал: согласование закрыто, его голос остаётся pending.
	_, err = w.CastVote(users[2], appr.PublicID, models.ApprovalStatusApproved)
	if !errors.Is(err, ErrApprovalClosed) {
		t.Errorf("expected ErrApprovalClosed, got %v", err)
	}
	var late models.Vote
	if err := db.Where("approval_id = ? AND user_id = ?", appr.ID, users[2]).First(&late).Error; err != nil {
		t.Fatal(err)
	}
	if late.ApprovalStatus != models.ApprovalStatusPending {
		t.Errorf("late vote must stay pending, got %q", late.ApprovalStatus)
	}
}

func TestUnanimousApprovalAppliesOnce(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorkflow(t, db)
	projectID, users := seedProject(t, db, 3)
	plot := seedPlot(t, db, projectID, "100000")

	appr, err := w.Propose(users[0], projectID, models.TargetModelPlot, plot.ID,
		addAmountFields("5000"), mustDecimal(t, "5000"))
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	mid, err := w.CastVote(users[1], appr.PublicID, models.ApprovalStatusApproved)
	if err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	if mid.Status != models.ApprovalStatusPending {
		t.Errorf("2 of 3 approvals must stay pending, got %q", mid.Status)
	}

	final, err := w.CastVote(users[2], appr.PublicID, models.ApprovalStatusApproved)
	if err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	if final.Status != models.ApprovalStatusApproved {
		t.Errorf("status = %q, want approved", final.Status)
	}

	got := reloadPlot(t, db, plot.ID)
	if !got.AmountCollected.Equal(mustDecimal(t, "5000")) {
		t.Errorf("amount applied exactly once: collected = %s, want 5000", got.AmountCollected)
	}

	// Статус терминален: повторное голосование ничего не меняет.
	if _, err := w.CastVote(users[1], appr.PublicID, models.ApprovalStatusRejected); !errors.Is(err, ErrApprovalClosed) {
		t.Errorf("expected ErrApprovalClosed, got %v", err)
	}
	var reloaded models.TransactionApproval
	if err := db.First(&reloaded, appr.ID).Error; err != nil {
		t.Fatal(err)
	}
	if reloaded.Status != models.ApprovalStatusApproved {
		t.Errorf("terminal status changed to %q", reloaded.Status)
	}
}

func TestCastVoteIsFinal(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorkflow(t, db)
	projectID, users := seedProject(t, db, 3)
	plot := seedPlot(t, db, projectID, "100000")

	appr, err := w.Propose(users[0], projectID, models.TargetModelPlot, plot.ID,
		addAmountFields("5000"), mustDecimal(t, "5000"))
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	if _, err := w.CastVote(users[1], appr.PublicID, models.ApprovalStatusApproved); err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	if _, err := w.CastVote(users[1], appr.PublicID, models.ApprovalStatusRejected); !errors.Is(err, ErrAlreadyVoted) {
		t.Errorf("expected ErrAlreadyVoted, got %v", err)
	}

	// Голос инициатора посеян "approved" и тоже окончателен.
	if _, err := w.CastVote(users[0], appr.PublicID, models.ApprovalStatusRejected); !errors.Is(err, ErrAlreadyVoted) {
		t.Errorf("expected ErrAlreadyVoted for initiator, got %v", err)
	}
}

func TestCastVoteByNonPartner(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorkflow(t, db)
	projectID, users := seedProject(t, db, 2)
	plot := seedPlot(t, db, projectID, "100000")

	appr, err := w.Propose(users[0], projectID, models.TargetModelPlot, plot.ID,
		addAmountFields("5000"), mustDecimal(t, "5000"))
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	outsider := models.User{Login: "stranger", PasswordHash: "x"}
	if err := db.Create(&outsider).Error; err != nil {
		t.Fatal(err)
	}
	if _, err := w.CastVote(outsider.ID, appr.PublicID, models.ApprovalStatusApproved); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestInvalidDecision(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorkflow(t, db)

	if _, err := w.CastVote(1, "whatever", "maybe"); !errors.Is(err, ErrInvalidDecision) {
		t.Errorf("expected ErrInvalidDecision, got %v", err)
	}
}

func TestOverCollectionLeavesLedgerUnchanged(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorkflow(t, db)
	projectID, users := seedProject(t, db, 2)
	plot := seedPlot(t, db, projectID, "1000")

	first, err := w.Propose(users[0], projectID, models.TargetModelPlot, plot.ID,
		addAmountFields("600"), mustDecimal(t, "600"))
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if _, err := w.CastVote(users[1], first.PublicID, models.ApprovalStatusApproved); err != nil {
		t.Fatalf("CastVote: %v", err)
	}

	second, err := w.Propose(users[0], projectID, models.TargetModelPlot, plot.ID,
		addAmountFields("600"), mustDecimal(t, "600"))
	if err != nil {
		t.Fatalf("second Propose: %v", err)
	}

	// Решающий голос не может примениться: превышение цены откатывает всю
	// транзакцию — и голос, и переход статуса.
	_, err = w.CastVote(users[1], second.PublicID, models.ApprovalStatusApproved)
	if !errors.Is(err, ledger.ErrOverCollection) {
		t.Fatalf("expected ErrOverCollection, got %v", err)
	}

	got := reloadPlot(t, db, plot.ID)
	if !got.AmountCollected.Equal(mustDecimal(t, "600")) {
		t.Errorf("ledger changed: collected = %s, want 600", got.AmountCollected)
	}
	var reloaded models.TransactionApproval
	if err := db.First(&reloaded, second.ID).Error; err != nil {
		t.Fatal(err)
	}
	if reloaded.Status != models.ApprovalStatusPending {
		t.Errorf("approval status = %q, want pending after rollback", reloaded.Status)
	}
}

func sellFields(amountCollected string, emi bool) models.FieldValues {
	fields := models.FieldValues{
		"plot_status":      models.PlotStatusSold,
		"amount_collected": amountCollected,
		"sold_on_date":     "2025-03-01",
		"customer_name":    "Suresh Kumar",
		"customer_phone":   "+91 98100 00000",
		"customer_email":   "suresh@example.com",
	}
	if emi {
		fields["is_emi"] = true
		fields["emi_amount"] = "10000"
		fields["emi_frequency_months"] = 1
		fields["emi_start_date"] = "2025-04-01"
	}
	return fields
}

func TestApprovedSaleGeneratesEmiSchedule(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorkflow(t, db)
	projectID, users := seedProject(t, db, 2)
	plot := seedPlot(t, db, projectID, "100000")

	appr, err := w.Propose(users[0], projectID, models.TargetModelPlot, plot.ID,
		sellFields("20000", true), mustDecimal(t, "20000"))
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	// До одобрения участок не меняется и графика нет.
	if got := reloadPlot(t, db, plot.ID); got.PlotStatus != models.PlotStatusAvailable {
		t.Errorf("plot mutated before approval: %q", got.PlotStatus)
	}

	if _, err := w.CastVote(users[1], appr.PublicID, models.ApprovalStatusApproved); err != nil {
		t.Fatalf("CastVote: %v", err)
	}

	got := reloadPlot(t, db, plot.ID)
	if got.PlotStatus != models.PlotStatusSold {
		t.Errorf("plot_status = %q, want sold", got.PlotStatus)
	}
	if !got.AmountCollected.Equal(mustDecimal(t, "20000")) {
		t.Errorf("amount_collected = %s, want 20000", got.AmountCollected)
	}
	if got.CustomerName != "Suresh Kumar" {
		t.Errorf("customer_name = %q", got.CustomerName)
	}
	if got.SoldByID == nil || *got.SoldByID != users[0] {
		t.Error("sold_by must be the initiator")
	}

	var schedule []models.PlotEmi
	if err := db.Where("plot_id = ?", plot.ID).Order("due_date ASC").Find(&schedule).Error; err != nil {
		t.Fatal(err)
	}
	if len(schedule) != 8 {
		t.Fatalf("got %d installments, want 8", len(schedule))
	}
	total := decimal.Zero
	for _, e := range schedule {
		total = total.Add(e.Amount)
		if e.IsPaid {
			t.Error("installment generated as paid")
		}
	}
	if !total.Equal(mustDecimal(t, "80000")) {
		t.Errorf("schedule sums to %s, want 80000", total)
	}
}

func TestEmiMarkPaidGoesThroughApproval(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorkflow(t, db)
	projectID, users := seedProject(t, db, 2)
	plot := seedPlot(t, db, projectID, "100000")

	sale, err := w.Propose(users[0], projectID, models.TargetModelPlot, plot.ID,
		sellFields("20000", true), mustDecimal(t, "20000"))
	if err != nil {
		t.Fatalf("Propose sale: %v", err)
	}
	if _, err := w.CastVote(users[1], sale.PublicID, models.ApprovalStatusApproved); err != nil {
		t.Fatalf("approve sale: %v", err)
	}

	var installment models.PlotEmi
	if err := db.Where("plot_id = ?", plot.ID).Order("due_date ASC").First(&installment).Error; err != nil {
		t.Fatal(err)
	}

	appr, err := w.Propose(users[1], projectID, models.TargetModelPlotEmi, installment.ID,
		models.FieldValues{"is_paid": true, "paid_date": "2025-04-02"}, installment.Amount)
	if err != nil {
		t.Fatalf("Propose mark-paid: %v", err)
	}

	// Платёж не закрыт, пока согласование висит.
	var pendingCheck models.PlotEmi
	if err := db.First(&pendingCheck, installment.ID).Error; err != nil {
		t.Fatal(err)
	}
	if pendingCheck.IsPaid {
		t.Fatal("installment marked paid before approval resolved")
	}

	if _, err := w.CastVote(users[0], appr.PublicID, models.ApprovalStatusApproved); err != nil {
		t.Fatalf("approve mark-paid: %v", err)
	}

	var paid models.PlotEmi
	if err := db.First(&paid, installment.ID).Error; err != nil {
		t.Fatal(err)
	}
	if !paid.IsPaid || paid.PaidDate == nil {
		t.Error("installment must be paid after approval")
	}
	if paid.TransactionID == nil || *paid.TransactionID != appr.ID {
		t.Error("payment must be attributed to the authorizing approval")
	}

	got := reloadPlot(t, db, plot.ID)
	if !got.AmountCollected.Equal(mustDecimal(t, "30000")) {
		t.Errorf("amount_collected = %s, want 30000 (20000 + installment)", got.AmountCollected)
	}
}

func TestApprovedExpenseIsCreated(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorkflow(t, db)
	projectID, users := seedProject(t, db, 2)

	appr, err := w.Propose(users[0], projectID, models.TargetModelExpense, 0,
		models.FieldValues{
			"title":    "Site levelling",
			"category": "labour",
			"amount":   "45000",
			"spent_on": "2025-02-10",
		}, mustDecimal(t, "45000"))
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	var n int64
	db.Model(&models.Expense{}).Count(&n)
	if n != 0 {
		t.Fatal("expense created before approval resolved")
	}

	if _, err := w.CastVote(users[1], appr.PublicID, models.ApprovalStatusApproved); err != nil {
		t.Fatalf("CastVote: %v", err)
	}

	var expense models.Expense
	if err := db.Where("approval_id = ?", appr.ID).First(&expense).Error; err != nil {
		t.Fatalf("expense not created: %v", err)
	}
	if expense.Title != "Site levelling" || !expense.Amount.Equal(mustDecimal(t, "45000")) {
		t.Errorf("unexpected expense: %+v", expense)
	}
	if expense.RecordedByID != users[0] {
		t.Error("expense must be attributed to the initiator")
	}

	// Создание расхода не занимает single-flight слот: второй расход можно
	// предложить сразу.
	if _, err := w.Propose(users[1], projectID, models.TargetModelExpense, 0,
		models.FieldValues{"title": "Cement", "amount": "12000"}, mustDecimal(t, "12000")); err != nil {
		t.Errorf("expense proposals must not conflict, got %v", err)
	}
}

func TestRejectedApprovalIsRetainedAsHistory(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorkflow(t, db)
	projectID, users := seedProject(t, db, 2)
	plot := seedPlot(t, db, projectID, "100000")

	appr, err := w.Propose(users[0], projectID, models.TargetModelPlot, plot.ID,
		addAmountFields("5000"), mustDecimal(t, "5000"))
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if _, err := w.CastVote(users[1], appr.PublicID, models.ApprovalStatusRejected); err != nil {
		t.Fatalf("CastVote: %v", err)
	}

	var reloaded models.TransactionApproval
	if err := db.First(&reloaded, appr.ID).Error; err != nil {
		t.Fatalf("rejected approval must stay in history: %v", err)
	}
	if reloaded.Status != models.ApprovalStatusRejected || reloaded.ResolvedAt == nil {
		t.Errorf("unexpected rejected record: status=%q resolved_at=%v", reloaded.Status, reloaded.ResolvedAt)
	}
	// Патч сохранился как есть (история аудита).
	if reloaded.FieldValues["amount"] != "5000" {
		t.Errorf("field_values mutated: %+v", reloaded.FieldValues)
	}
}

func TestNotifierFiresAfterCommit(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorkflow(t, db)
	projectID, users := seedProject(t, db, 2)
	plot := seedPlot(t, db, projectID, "100000")

	var events []string
	w.SetNotifier(func(a *models.TransactionApproval) {
		events = append(events, a.Status)
	})

	appr, err := w.Propose(users[0], projectID, models.TargetModelPlot, plot.ID,
		addAmountFields("5000"), mustDecimal(t, "5000"))
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if _, err := w.CastVote(users[1], appr.PublicID, models.ApprovalStatusApproved); err != nil {
		t.Fatalf("CastVote: %v", err)
	}

	if len(events) != 2 || events[0] != models.ApprovalStatusPending || events[1] != models.ApprovalStatusApproved {
		t.Errorf("unexpected notifications: %v", events)
	}
}

func TestConcurrentDecidingVotesApplyOnce(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorkflow(t, db)
	projectID, users := seedProject(t, db, 3)
	plot := seedPlot(t, db, projectID, "100000")

	appr, err := w.Propose(users[0], projectID, models.TargetModelPlot, plot.ID,
		addAmountFields("5000"), mustDecimal(t, "5000"))
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	// Два оставшихся партнёра голосуют одновременно. Кто бы ни оказался
	// решающим, переход pending -> approved выполняется ровно один раз,
	// значит и запись в леджер ровно одна.
	voters := []uint{users[1], users[2]}
	errs := make([]error, len(voters))
	var wg sync.WaitGroup
	for i, voter := range voters {
		wg.Add(1)
		go func(i int, voter uint) {
			defer wg.Done()
			_, errs[i] = w.CastVote(voter, appr.PublicID, models.ApprovalStatusApproved)
		}(i, voter)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("concurrent voter %d: %v", i, err)
		}
	}

	var reloaded models.TransactionApproval
	if err := db.First(&reloaded, appr.ID).Error; err != nil {
		t.Fatal(err)
	}
	if reloaded.Status != models.ApprovalStatusApproved {
		t.Fatalf("status = %q, want approved", reloaded.Status)
	}

	got := reloadPlot(t, db, plot.ID)
	if !got.AmountCollected.Equal(mustDecimal(t, "5000")) {
		t.Errorf("amount applied more than once: collected = %s, want 5000", got.AmountCollected)
	}
}

func TestConcurrentProposalsAdmitOne(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorkflow(t, db)
	projectID, users := seedProject(t, db, 2)
	plot := seedPlot(t, db, projectID, "100000")

	// Оба партнёра одновременно предлагают мутацию одного участка: гонку
	// закрывает частичный уникальный индекс, пройти должен ровно один.
	errs := make([]error, len(users))
	var wg sync.WaitGroup
	for i, initiator := range users {
		wg.Add(1)
		go func(i int, initiator uint) {
			defer wg.Done()
			_, errs[i] = w.Propose(initiator, projectID, models.TargetModelPlot, plot.ID,
				addAmountFields("5000"), mustDecimal(t, "5000"))
		}(i, initiator)
	}
	wg.Wait()

	var ok, conflicts int
	for i, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrConflict):
			conflicts++
		default:
			t.Fatalf("proposer %d: unexpected error %v", i, err)
		}
	}
	if ok != 1 || conflicts != 1 {
		t.Fatalf("got %d successes and %d conflicts, want exactly 1 and 1", ok, conflicts)
	}

	var pending int64
	err := db.Model(&models.TransactionApproval{}).
		Where("target_model = ? AND target_id = ? AND status = ?",
			models.TargetModelPlot, plot.ID, models.ApprovalStatusPending).
		Count(&pending).Error
	if err != nil {
		t.Fatal(err)
	}
	if pending != 1 {
		t.Errorf("%d pending approvals for one target, want 1", pending)
	}
}
