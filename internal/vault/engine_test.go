package vault

import (
	"context"
	"testing"
	"time"

	"github.com/bountyvault/core/internal/kernel"
	"github.com/bountyvault/core/internal/ports"
)

func testPrincipal(fill byte) kernel.Principal {
	var p kernel.Principal
	p[19] = fill
	return p
}

func newTestVault(t *testing.T) (*Vault, kernel.Principal, kernel.Principal) {
	t.Helper()
	admin := testPrincipal(0x01)
	feeRecipient := testPrincipal(0xFE)
	v := New([]kernel.Principal{admin}, feeRecipient, ports.NoopTransfer{}, nil)
	return v, admin, feeRecipient
}

func authorizeCaller(t *testing.T, v *Vault, admin, caller kernel.Principal) {
	t.Helper()
	if err := v.AddAuthorizedCaller(admin, caller); err != nil {
		t.Fatalf("AddAuthorizedCaller: %v", err)
	}
}

func TestDepositCreditsAvailable(t *testing.T) {
	v, _, _ := newTestVault(t)
	company := testPrincipal(0x02)

	txID, err := v.Deposit(context.Background(), company, kernel.NativeToken(), 10_000_000_000)
	if err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if txID == 0 {
		t.Fatal("expected non-zero transaction id")
	}

	row := v.GetBalance(company, kernel.NativeToken())
	if row.Available != 10_000_000_000 || row.Locked != 0 {
		t.Fatalf("unexpected balance after deposit: %+v", row)
	}
}

func TestDepositRejectsZeroAmountAndAnonymous(t *testing.T) {
	v, _, _ := newTestVault(t)
	company := testPrincipal(0x02)

	if _, err := v.Deposit(context.Background(), company, kernel.NativeToken(), 0); kernel.KindOf(err) != kernel.InvalidInput {
		t.Fatalf("expected InvalidInput for zero amount, got %v", err)
	}
	if _, err := v.Deposit(context.Background(), kernel.AnonymousPrincipal, kernel.NativeToken(), 100); kernel.KindOf(err) != kernel.Unauthorized {
		t.Fatalf("expected Unauthorized for anonymous caller, got %v", err)
	}
}

func TestLockFundsReservesAvailable(t *testing.T) {
	v, admin, _ := newTestVault(t)
	caller := testPrincipal(0x10)
	company := testPrincipal(0x02)
	authorizeCaller(t, v, admin, caller)

	if _, err := v.Deposit(context.Background(), company, kernel.NativeToken(), 10_000_000_000); err != nil {
		t.Fatalf("Deposit: %v", err)
	}

	req := LockRequest{ChallengeID: 1, Company: company, Amount: 500_000_000, Token: kernel.NativeToken(), Duration: 24 * time.Hour}
	if err := v.LockFunds(context.Background(), caller, req); err != nil {
		t.Fatalf("LockFunds: %v", err)
	}

	row := v.GetBalance(company, kernel.NativeToken())
	if row.Available != 9_500_000_000 || row.Locked != 500_000_000 {
		t.Fatalf("unexpected balance after lock: %+v", row)
	}
	if row.Total() != 10_000_000_000 {
		t.Fatalf("invariant B1 violated: total=%d want %d", row.Total(), 10_000_000_000)
	}

	lock, found := v.GetLockInfo(1)
	if !found || lock.Status != kernel.LockActive {
		t.Fatalf("expected an Active lock, got found=%v status=%v", found, lock.Status)
	}
}

func TestLockFundsUnauthorizedCaller(t *testing.T) {
	v, _, _ := newTestVault(t)
	company := testPrincipal(0x02)
	_, _ = v.Deposit(context.Background(), company, kernel.NativeToken(), 10_000_000_000)

	req := LockRequest{ChallengeID: 1, Company: company, Amount: kernel.MinLockAmount, Token: kernel.NativeToken(), Duration: 24 * time.Hour}
	if err := v.LockFunds(context.Background(), testPrincipal(0x99), req); kernel.KindOf(err) != kernel.Unauthorized {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
}

func TestLockFundsBelowMinimumRejected(t *testing.T) {
	v, admin, _ := newTestVault(t)
	caller := testPrincipal(0x10)
	company := testPrincipal(0x02)
	authorizeCaller(t, v, admin, caller)
	_, _ = v.Deposit(context.Background(), company, kernel.NativeToken(), 10_000_000_000)

	req := LockRequest{ChallengeID: 1, Company: company, Amount: kernel.MinLockAmount - 1, Token: kernel.NativeToken(), Duration: 24 * time.Hour}
	if err := v.LockFunds(context.Background(), caller, req); kernel.KindOf(err) != kernel.InvalidInput {
		t.Fatalf("expected InvalidInput below MIN_LOCK_AMOUNT, got %v", err)
	}
}

func TestLockFundsInsufficientFunds(t *testing.T) {
	v, admin, _ := newTestVault(t)
	caller := testPrincipal(0x10)
	company := testPrincipal(0x02)
	authorizeCaller(t, v, admin, caller)
	_, _ = v.Deposit(context.Background(), company, kernel.NativeToken(), 1_000_000)

	req := LockRequest{ChallengeID: 1, Company: company, Amount: 2_000_000, Token: kernel.NativeToken(), Duration: 24 * time.Hour}
	if err := v.LockFunds(context.Background(), caller, req); kernel.KindOf(err) != kernel.InsufficientFunds {
		t.Fatalf("expected InsufficientFunds, got %v", err)
	}
}

func TestLockFundsRejectsSecondActiveLock(t *testing.T) {
	v, admin, _ := newTestVault(t)
	caller := testPrincipal(0x10)
	company := testPrincipal(0x02)
	authorizeCaller(t, v, admin, caller)
	_, _ = v.Deposit(context.Background(), company, kernel.NativeToken(), 10_000_000_000)

	req := LockRequest{ChallengeID: 1, Company: company, Amount: kernel.MinLockAmount, Token: kernel.NativeToken(), Duration: 24 * time.Hour}
	if err := v.LockFunds(context.Background(), caller, req); err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if err := v.LockFunds(context.Background(), caller, req); kernel.KindOf(err) != kernel.InvalidState {
		t.Fatalf("expected InvalidState for a second Active lock on the same challenge, got %v", err)
	}
}

// TestUnlockFundsBountyPayoutFeeSplit exercises §8 invariant 5 and the
// worked example in §8 scenario 1: a 5 ICP bounty at 250bps splits into a
// 0.125 ICP fee and a 4.875 ICP net payout.
func TestUnlockFundsBountyPayoutFeeSplit(t *testing.T) {
	v, admin, feeRecipient := newTestVault(t)
	caller := testPrincipal(0x10)
	company := testPrincipal(0x02)
	hacker := testPrincipal(0x03)
	authorizeCaller(t, v, admin, caller)

	const bounty = 5 * 100_000_000 // 5 ICP-equivalent base units
	if _, err := v.Deposit(context.Background(), company, kernel.NativeToken(), 10*100_000_000); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if err := v.LockFunds(context.Background(), caller, LockRequest{
		ChallengeID: 1, Company: company, Amount: bounty, Token: kernel.NativeToken(), Duration: 24 * time.Hour,
	}); err != nil {
		t.Fatalf("LockFunds: %v", err)
	}

	result, err := v.UnlockFunds(context.Background(), caller, UnlockRequest{
		ChallengeID: 1, Recipient: hacker, Amount: bounty,
		Reason: kernel.UnlockReason{Kind: kernel.ReasonBountyPayout, Winner: hacker},
	})
	if err != nil {
		t.Fatalf("UnlockFunds: %v", err)
	}

	wantFee := uint64(bounty) * kernel.PlatformFeeBasisPoints / 10000
	wantNet := uint64(bounty) - wantFee
	if result.Fee != wantFee || result.Net != wantNet {
		t.Fatalf("fee split mismatch: got fee=%d net=%d, want fee=%d net=%d", result.Fee, result.Net, wantFee, wantNet)
	}
	if result.Net+result.Fee != bounty {
		t.Fatalf("invariant 5 violated: net+fee=%d want %d", result.Net+result.Fee, bounty)
	}

	hackerRow := v.GetBalance(hacker, kernel.NativeToken())
	if hackerRow.Available != wantNet {
		t.Fatalf("hacker balance mismatch: got %d want %d", hackerRow.Available, wantNet)
	}
	feeRow := v.GetBalance(feeRecipient, kernel.NativeToken())
	if feeRow.Available != wantFee {
		t.Fatalf("fee recipient balance mismatch: got %d want %d", feeRow.Available, wantFee)
	}

	companyRow := v.GetBalance(company, kernel.NativeToken())
	if companyRow.Locked != 0 {
		t.Fatalf("company locked balance should be drained, got %d", companyRow.Locked)
	}
	if companyRow.Available != 10*100_000_000-bounty {
		t.Fatalf("company available balance mismatch: got %d", companyRow.Available)
	}

	lock, _ := v.GetLockInfo(1)
	if lock.Status != kernel.LockReleased {
		t.Fatalf("expected lock Released after payout, got %v", lock.Status)
	}
}

// TestUnlockFundsRefundRestoresPreLockBalance is the round-trip scenario
// from §8: deposit, lock, unlock(ChallengeCancelled) with the same amount
// must restore the company's balance exactly, charging no fee, and append
// exactly three transaction-log entries (Lock, Lock, Refund).
func TestUnlockFundsRefundRestoresPreLockBalance(t *testing.T) {
	v, admin, _ := newTestVault(t)
	caller := testPrincipal(0x10)
	company := testPrincipal(0x02)
	authorizeCaller(t, v, admin, caller)

	const depositAmount = 10 * 100_000_000
	if _, err := v.Deposit(context.Background(), company, kernel.NativeToken(), depositAmount); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	preLock := v.GetBalance(company, kernel.NativeToken())

	const lockAmount = 5 * 100_000_000
	if err := v.LockFunds(context.Background(), caller, LockRequest{
		ChallengeID: 7, Company: company, Amount: lockAmount, Token: kernel.NativeToken(), Duration: 24 * time.Hour,
	}); err != nil {
		t.Fatalf("LockFunds: %v", err)
	}

	result, err := v.UnlockFunds(context.Background(), caller, UnlockRequest{
		ChallengeID: 7, Recipient: company, Amount: lockAmount,
		Reason: kernel.UnlockReason{Kind: kernel.ReasonChallengeCancelled},
	})
	if err != nil {
		t.Fatalf("UnlockFunds: %v", err)
	}
	if result.Fee != 0 {
		t.Fatalf("cancellation refund must not charge a fee, got %d", result.Fee)
	}

	postUnlock := v.GetBalance(company, kernel.NativeToken())
	if postUnlock != preLock {
		t.Fatalf("balance not restored: pre-lock=%+v post-unlock=%+v", preLock, postUnlock)
	}

	page, err := v.GetTransactionHistory(company, 0, 10)
	if err != nil {
		t.Fatalf("GetTransactionHistory: %v", err)
	}
	if len(page.Data) != 3 {
		t.Fatalf("expected 3 transactions (deposit-as-Lock, lock_funds-Lock, Refund), got %d: %+v", len(page.Data), page.Data)
	}
	if page.Data[0].Kind != kernel.TxRefund {
		t.Fatalf("newest transaction should be the Refund, got %v", page.Data[0].Kind)
	}
}

func TestUnlockFundsNoActiveLockFails(t *testing.T) {
	v, admin, _ := newTestVault(t)
	caller := testPrincipal(0x10)
	authorizeCaller(t, v, admin, caller)

	_, err := v.UnlockFunds(context.Background(), caller, UnlockRequest{
		ChallengeID: 999, Recipient: testPrincipal(0x03), Amount: 1,
		Reason: kernel.UnlockReason{Kind: kernel.ReasonChallengeExpired},
	})
	if kernel.KindOf(err) != kernel.NotFound {
		t.Fatalf("expected NotFound for a missing lock, got %v", err)
	}
}

// TestUnlockFundsSerializesOnSingleActiveLock covers §4.4's tie-break note:
// a second unlock against an already-Released lock fails, modelling
// concurrent evaluate_attack calls racing on the same challenge.
func TestUnlockFundsSerializesOnSingleActiveLock(t *testing.T) {
	v, admin, _ := newTestVault(t)
	caller := testPrincipal(0x10)
	company := testPrincipal(0x02)
	hacker := testPrincipal(0x03)
	authorizeCaller(t, v, admin, caller)

	_, _ = v.Deposit(context.Background(), company, kernel.NativeToken(), 10*100_000_000)
	_ = v.LockFunds(context.Background(), caller, LockRequest{
		ChallengeID: 1, Company: company, Amount: kernel.MinLockAmount, Token: kernel.NativeToken(), Duration: 24 * time.Hour,
	})

	req := UnlockRequest{ChallengeID: 1, Recipient: hacker, Amount: kernel.MinLockAmount, Reason: kernel.UnlockReason{Kind: kernel.ReasonBountyPayout, Winner: hacker}}
	if _, err := v.UnlockFunds(context.Background(), caller, req); err != nil {
		t.Fatalf("first unlock: %v", err)
	}
	if _, err := v.UnlockFunds(context.Background(), caller, req); kernel.KindOf(err) != kernel.InvalidState {
		t.Fatalf("expected InvalidState on the already-released lock, got %v", err)
	}
}

func TestPauseBlocksMutationsNotQueries(t *testing.T) {
	v, admin, _ := newTestVault(t)
	caller := testPrincipal(0x10)
	company := testPrincipal(0x02)
	authorizeCaller(t, v, admin, caller)
	_, _ = v.Deposit(context.Background(), company, kernel.NativeToken(), 10*100_000_000)

	if err := v.SetPauseStatus(admin, true); err != nil {
		t.Fatalf("SetPauseStatus: %v", err)
	}
	if !v.IsPaused() {
		t.Fatal("expected vault to report paused")
	}

	if _, err := v.Deposit(context.Background(), company, kernel.NativeToken(), 1); kernel.KindOf(err) != kernel.InvalidState {
		t.Fatalf("expected InvalidState(paused) on deposit, got %v", err)
	}
	lockReq := LockRequest{ChallengeID: 2, Company: company, Amount: kernel.MinLockAmount, Token: kernel.NativeToken(), Duration: 24 * time.Hour}
	if err := v.LockFunds(context.Background(), caller, lockReq); kernel.KindOf(err) != kernel.InvalidState {
		t.Fatalf("expected InvalidState(paused) on lock_funds, got %v", err)
	}
	if _, err := v.UnlockFunds(context.Background(), caller, UnlockRequest{ChallengeID: 2, Recipient: company, Amount: 1, Reason: kernel.UnlockReason{Kind: kernel.ReasonChallengeExpired}}); kernel.KindOf(err) != kernel.InvalidState {
		t.Fatalf("expected InvalidState(paused) on unlock_funds, got %v", err)
	}

	// Queries remain unaffected while paused.
	row := v.GetBalance(company, kernel.NativeToken())
	if row.Available != 10*100_000_000 {
		t.Fatalf("query should be unaffected by pause: %+v", row)
	}

	if err := v.SetPauseStatus(admin, false); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if err := v.LockFunds(context.Background(), caller, lockReq); err != nil {
		t.Fatalf("lock should succeed after unpause: %v", err)
	}
}

func TestAdminOperationsRestrictedToAdminSet(t *testing.T) {
	v, _, _ := newTestVault(t)
	notAdmin := testPrincipal(0x77)

	if err := v.SetPauseStatus(notAdmin, true); kernel.KindOf(err) != kernel.PermissionDenied {
		t.Fatalf("expected PermissionDenied for non-admin pause, got %v", err)
	}
	if err := v.AddAuthorizedCaller(notAdmin, testPrincipal(0x10)); kernel.KindOf(err) != kernel.PermissionDenied {
		t.Fatalf("expected PermissionDenied for non-admin authorized-caller grant, got %v", err)
	}
	if err := v.SetPlatformFeeRecipient(notAdmin, testPrincipal(0x10)); kernel.KindOf(err) != kernel.PermissionDenied {
		t.Fatalf("expected PermissionDenied for non-admin fee-recipient change, got %v", err)
	}
}

func TestGetTransactionHistoryPaginatesNewestFirst(t *testing.T) {
	v, _, _ := newTestVault(t)
	company := testPrincipal(0x02)
	for i := 0; i < 5; i++ {
		if _, err := v.Deposit(context.Background(), company, kernel.NativeToken(), 1_000); err != nil {
			t.Fatalf("Deposit %d: %v", i, err)
		}
	}

	page, err := v.GetTransactionHistory(company, 0, 3)
	if err != nil {
		t.Fatalf("GetTransactionHistory: %v", err)
	}
	if len(page.Data) != 3 || page.Total != 5 || !page.HasMore {
		t.Fatalf("unexpected first page: %+v", page)
	}
	for i := 0; i < len(page.Data)-1; i++ {
		if page.Data[i].ID < page.Data[i+1].ID {
			t.Fatalf("transactions not newest-first: %+v", page.Data)
		}
	}

	if _, err := v.GetTransactionHistory(company, 0, 101); kernel.KindOf(err) != kernel.PaginationError {
		t.Fatalf("expected PaginationError for limit=101, got %v", err)
	}
}

func TestGetBalanceReturnsZeroRowWhenAbsent(t *testing.T) {
	v, _, _ := newTestVault(t)
	row := v.GetBalance(testPrincipal(0xAB), kernel.NativeToken())
	if row.Available != 0 || row.Locked != 0 {
		t.Fatalf("expected zero row for an unknown (owner, token), got %+v", row)
	}
}
