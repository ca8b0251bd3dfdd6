package systemd

import "testing"

func TestGetListenersWithoutActivation(t *testing.T) {
	t.Setenv("LISTEN_FDS", "")
	t.Setenv("LISTEN_PID", "")

	listeners, err := GetListeners()
	if err != nil {
		t.Fatalf("get listeners: %v", err)
	}
	if listeners.Activated {
		t.Fatal("expected no socket activation")
	}
	if listeners.API != nil || listeners.Metrics != nil {
		t.Fatal("expected nil listeners")
	}
}

func TestNotifyWithoutSocket(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")

	if IsSystemdService() {
		t.Fatal("expected not to run under systemd")
	}
	if err := NotifyReady(); err != nil {
		t.Fatalf("notify ready: %v", err)
	}
	if err := NotifyStatus("tracking"); err != nil {
		t.Fatalf("notify status: %v", err)
	}
	if err := NotifyStopping(); err != nil {
		t.Fatalf("notify stopping: %v", err)
	}
}
