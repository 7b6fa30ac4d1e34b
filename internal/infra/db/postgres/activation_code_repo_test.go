//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"

	"device-activation/internal/domain"
	"device-activation/internal/domain/model"
	"device-activation/internal/domain/ports/repository"
)

func seedCode(t *testing.T, repo repository.ActivationCodeRepository, code string, validDays *int) *model.ActivationCode {
	t.Helper()
	ac := &model.ActivationCode{Code: code, ValidDays: validDays}
	if err := repo.Insert(context.Background(), repository.NoTX, ac); err != nil {
		t.Fatalf("Failed to insert code %s: %v", code, err)
	}
	return ac
}

func TestActivationCodeRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	repo := NewActivationCodeRepo(testPool)
	ctx := context.Background()
	cleanup(t)

	days := 7

	t.Run("should insert and read back a code", func(t *testing.T) {
		cleanup(t)
		seedCode(t, repo, "AAAA000011112222", &days)

		found, err := repo.FindByCode(ctx, repository.NoTX, "AAAA000011112222")
		if err != nil {
			t.Fatalf("Failed to find code: %v", err)
		}
		if found.ID == "" || found.IsUsed || found.UsedAt != nil || found.UsedBy != nil {
			t.Errorf("Fresh code has unexpected state: %+v", found)
		}
		if found.ValidDays == nil || *found.ValidDays != 7 {
			t.Errorf("Expected validDays=7, got %v", found.ValidDays)
		}
	})

	t.Run("should report missing codes as not found", func(t *testing.T) {
		if _, err := repo.FindByCode(ctx, repository.NoTX, "MISSING000000000"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("should enforce the unique code constraint", func(t *testing.T) {
		cleanup(t)
		seedCode(t, repo, "DUPL000011112222", nil)
		err := repo.Insert(ctx, repository.NoTX, &model.ActivationCode{Code: "DUPL000011112222"})
		if err == nil {
			t.Fatal("Expected a constraint violation on duplicate code")
		}
	})

	t.Run("should report code existence", func(t *testing.T) {
		cleanup(t)
		seedCode(t, repo, "EXIS000011112222", nil)

		exists, err := repo.CodeExists(ctx, repository.NoTX, "EXIS000011112222")
		if err != nil || !exists {
			t.Errorf("Expected exists=true, got %v %v", exists, err)
		}
		exists, err = repo.CodeExists(ctx, repository.NoTX, "NOPE000011112222")
		if err != nil || exists {
			t.Errorf("Expected exists=false, got %v %v", exists, err)
		}
	})

	t.Run("should activate an unused code exactly once", func(t *testing.T) {
		cleanup(t)
		seedCode(t, repo, "ACTV000011112222", &days)
		now := time.Now()
		exp := now.Add(7 * 24 * time.Hour)

		ok, err := repo.Activate(ctx, repository.NoTX, "ACTV000011112222", "dev-A", now, &exp)
		if err != nil || !ok {
			t.Fatalf("First activation must win: ok=%v err=%v", ok, err)
		}
		ok, err = repo.Activate(ctx, repository.NoTX, "ACTV000011112222", "dev-B", now, &exp)
		if err != nil {
			t.Fatalf("Second activation errored: %v", err)
		}
		if ok {
			t.Error("Second activation must lose the conditional update")
		}

		found, err := repo.FindByCode(ctx, repository.NoTX, "ACTV000011112222")
		if err != nil {
			t.Fatalf("Failed to re-read code: %v", err)
		}
		if !found.IsUsed || found.UsedBy == nil || *found.UsedBy != "dev-A" {
			t.Errorf("Binding must belong to the first caller, got %+v", found)
		}
	})

	t.Run("should let exactly one concurrent activation win", func(t *testing.T) {
		cleanup(t)
		seedCode(t, repo, "RACE000011112222", &days)
		now := time.Now()

		const attempts = 10
		var wg sync.WaitGroup
		wins := make(chan string, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				dev := string(rune('a'+n)) + "-device"
				ok, err := repo.Activate(ctx, repository.NoTX, "RACE000011112222", dev, now, nil)
				if err == nil && ok {
					wins <- dev
				}
			}(i)
		}
		wg.Wait()
		close(wins)

		var winners []string
		for w := range wins {
			winners = append(winners, w)
		}
		if len(winners) != 1 {
			t.Fatalf("Expected exactly 1 winner, got %d: %v", len(winners), winners)
		}
		found, _ := repo.FindByCode(ctx, repository.NoTX, "RACE000011112222")
		if found.UsedBy == nil || *found.UsedBy != winners[0] {
			t.Errorf("Stored binding %v does not match winner %s", found.UsedBy, winners[0])
		}
	})

	t.Run("should find the binding by device", func(t *testing.T) {
		cleanup(t)
		seedCode(t, repo, "BYDV000011112222", &days)
		now := time.Now()
		if ok, err := repo.Activate(ctx, repository.NoTX, "BYDV000011112222", "dev-X", now, nil); err != nil || !ok {
			t.Fatalf("activate: ok=%v err=%v", ok, err)
		}

		found, err := repo.FindBoundByDevice(ctx, repository.NoTX, "dev-X")
		if err != nil {
			t.Fatalf("Failed to find binding by device: %v", err)
		}
		if found.Code != "BYDV000011112222" {
			t.Errorf("Expected code BYDV000011112222, got %s", found.Code)
		}
		if _, err := repo.FindBoundByDevice(ctx, repository.NoTX, "dev-unknown"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Expected ErrNotFound for unbound device, got %v", err)
		}
	})

	t.Run("should prefer the newest binding when a stale one lingers", func(t *testing.T) {
		cleanup(t)
		stale := seedCode(t, repo, "OLD0000011112222", &days)
		fresh := seedCode(t, repo, "NEW0000011112222", &days)
		now := time.Now()

		if ok, err := repo.Activate(ctx, repository.NoTX, stale.Code, "dev-S", now.Add(-9*24*time.Hour), nil); err != nil || !ok {
			t.Fatalf("activate stale: ok=%v err=%v", ok, err)
		}
		if ok, err := repo.Activate(ctx, repository.NoTX, fresh.Code, "dev-S", now, nil); err != nil || !ok {
			t.Fatalf("activate fresh: ok=%v err=%v", ok, err)
		}

		found, err := repo.FindBoundByDevice(ctx, repository.NoTX, "dev-S")
		if err != nil {
			t.Fatalf("Failed to find binding by device: %v", err)
		}
		if found.Code != fresh.Code {
			t.Errorf("Expected the newest binding %s, got %s", fresh.Code, found.Code)
		}
	})

	t.Run("should release only rows that are still expired at write time", func(t *testing.T) {
		cleanup(t)
		expired := seedCode(t, repo, "RELE000011112222", &days)
		live := seedCode(t, repo, "LIVE000011112222", &days)
		now := time.Now()

		// Bind both; backdate the first past its window.
		past := now.Add(-8 * 24 * time.Hour)
		if ok, err := repo.Activate(ctx, repository.NoTX, expired.Code, "dev-old", past, nil); err != nil || !ok {
			t.Fatalf("activate expired: ok=%v err=%v", ok, err)
		}
		if ok, err := repo.Activate(ctx, repository.NoTX, live.Code, "dev-new", now, nil); err != nil || !ok {
			t.Fatalf("activate live: ok=%v err=%v", ok, err)
		}

		released, err := repo.ReleaseByIDs(ctx, repository.NoTX, []string{expired.ID, live.ID}, now)
		if err != nil {
			t.Fatalf("release: %v", err)
		}
		if released != 1 {
			t.Fatalf("Expected 1 released row, got %d", released)
		}

		freed, _ := repo.FindByCode(ctx, repository.NoTX, expired.Code)
		if freed.IsUsed || freed.UsedAt != nil || freed.UsedBy != nil || freed.ExpiresAt != nil {
			t.Errorf("Released row must be fully reset, got %+v", freed)
		}
		kept, _ := repo.FindByCode(ctx, repository.NoTX, live.Code)
		if !kept.IsUsed {
			t.Error("Row inside its window must not be released")
		}
	})

	t.Run("should release legacy rows by their stored expires_at", func(t *testing.T) {
		cleanup(t)
		// Legacy shape: eager expiry, no valid_days.
		pastExp := time.Now().Add(-time.Hour)
		legacy := &model.ActivationCode{Code: "LEGA000011112222", ExpiresAt: &pastExp}
		if err := repo.Insert(ctx, repository.NoTX, legacy); err != nil {
			t.Fatalf("insert legacy: %v", err)
		}
		if ok, err := repo.Activate(ctx, repository.NoTX, legacy.Code, "dev-L", time.Now().Add(-2*time.Hour), &pastExp); err != nil || !ok {
			t.Fatalf("activate legacy: ok=%v err=%v", ok, err)
		}
		// Clear valid_days path: the row has used_at but no valid_days, so the
		// COALESCE falls through to expires_at.
		released, err := repo.ReleaseByIDs(ctx, repository.NoTX, []string{legacy.ID}, time.Now())
		if err != nil || released != 1 {
			t.Fatalf("Expected legacy row released, got %d %v", released, err)
		}
	})

	t.Run("should list codes newest first and find used ones", func(t *testing.T) {
		cleanup(t)
		seedCode(t, repo, "LST1000011112222", nil)
		seedCode(t, repo, "LST2000011112222", nil)
		if ok, err := repo.Activate(ctx, repository.NoTX, "LST1000011112222", "dev-1", time.Now(), nil); err != nil || !ok {
			t.Fatalf("activate: ok=%v err=%v", ok, err)
		}

		all, err := repo.List(ctx, repository.NoTX)
		if err != nil || len(all) != 2 {
			t.Fatalf("Expected 2 rows, got %d %v", len(all), err)
		}
		used, err := repo.FindUsed(ctx, repository.NoTX)
		if err != nil || len(used) != 1 || used[0].Code != "LST1000011112222" {
			t.Fatalf("Expected exactly the bound row, got %v %v", used, err)
		}
	})

	t.Run("should delete by id", func(t *testing.T) {
		cleanup(t)
		ac := seedCode(t, repo, "DELE000011112222", nil)

		if err := repo.Delete(ctx, repository.NoTX, ac.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if err := repo.Delete(ctx, repository.NoTX, ac.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Expected ErrNotFound on double delete, got %v", err)
		}
	})

	t.Run("should run inside a managed transaction", func(t *testing.T) {
		cleanup(t)
		tm := NewTxManager(testPool)
		err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			ac := &model.ActivationCode{Code: "TXNS000011112222"}
			if err := repo.Insert(ctx, tx, ac); err != nil {
				return err
			}
			return errors.New("force rollback")
		})
		if err == nil {
			t.Fatal("Expected forced rollback error")
		}
		if _, err := repo.FindByCode(ctx, repository.NoTX, "TXNS000011112222"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Rolled-back insert must not be visible, got %v", err)
		}
	})
}
