package audit

import (
	"context"
	"errors"
	"testing"
)

func TestService_AppendRequiresType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, nil)

	if err := svc.Append(context.Background(), Event{Vendor: "plantronics"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, nil)

	svc.LogConnectFailed(context.Background(), "sennheiser", errors.New("dial refused"))

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	if evs[0].Type != EventTypeConnectFailed {
		t.Fatalf("expected connect_failed, got %s", evs[0].Type)
	}
	if evs[0].Vendor != "sennheiser" || evs[0].Message != "dial refused" {
		t.Fatalf("unexpected event %+v", evs[0])
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp stamped")
	}
}

func TestService_ClearedSelectionHasEmptyVendor(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, nil)

	svc.LogVendorSelected(context.Background(), "")

	evs := repo.Events()
	if len(evs) != 1 || evs[0].Type != EventTypeVendorSelected || evs[0].Vendor != "" {
		t.Fatalf("unexpected events %+v", evs)
	}
}

func TestService_DeviceAttachDetachTypes(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, nil)

	svc.LogDeviceAttached(context.Background(), "jabranative", "42", true)
	svc.LogDeviceAttached(context.Background(), "jabranative", "42", false)

	evs := repo.Events()
	if len(evs) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evs))
	}
	if evs[0].Type != EventTypeDeviceAttached || evs[1].Type != EventTypeDeviceDetached {
		t.Fatalf("unexpected types %s, %s", evs[0].Type, evs[1].Type)
	}
	if evs[0].DeviceID != "42" {
		t.Fatalf("expected device id captured")
	}
}
