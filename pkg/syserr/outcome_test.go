package syserr

import (
	"errors"
	"strings"
	"syscall"
	"testing"
)

func TestClassifyOk(t *testing.T) {
	if got := Classify(nil, false); got != Ok {
		t.Fatalf("Classify(nil) = %v, want Ok", got)
	}
}

func TestClassifyESRCHIsThreadGone(t *testing.T) {
	if got := Classify(syscall.ESRCH, false); got != ThreadGone {
		t.Fatalf("Classify(ESRCH) = %v, want ThreadGone", got)
	}
	if got := Classify(syscall.ESRCH, true); got != ThreadGone {
		t.Fatalf("Classify(ESRCH, attaching) = %v, want ThreadGone", got)
	}
}

func TestClassifyEPERMDependsOnAttaching(t *testing.T) {
	if got := Classify(syscall.EPERM, true); got != ThreadGone {
		t.Fatalf("Classify(EPERM, attaching) = %v, want ThreadGone", got)
	}
	if got := Classify(syscall.EPERM, false); got != Fatal {
		t.Fatalf("Classify(EPERM, not attaching) = %v, want Fatal", got)
	}
}

func TestClassifyOtherErrnoIsFatal(t *testing.T) {
	if got := Classify(syscall.EINVAL, false); got != Fatal {
		t.Fatalf("Classify(EINVAL) = %v, want Fatal", got)
	}
}

func TestClassifyNonErrnoIsFatal(t *testing.T) {
	if got := Classify(errors.New("boom"), false); got != Fatal {
		t.Fatalf("Classify(plain error) = %v, want Fatal", got)
	}
}

func TestWrapThreadGoneUnwrapsToSentinel(t *testing.T) {
	err := Wrap("ptrace attach", 42, syscall.ESRCH, false)
	if !errors.Is(err, ErrThreadGone) {
		t.Fatalf("Wrap(ESRCH) does not unwrap to ErrThreadGone: %v", err)
	}
}

func TestWrapDuringAttachFoldsEPERMIntoThreadGone(t *testing.T) {
	err := Wrap("ptrace attach", 42, syscall.EPERM, true)
	if !errors.Is(err, ErrThreadGone) {
		t.Fatalf("Wrap(EPERM, attaching=true) does not unwrap to ErrThreadGone: %v", err)
	}
	if got := err.Error(); !strings.Contains(got, "ESRCH") {
		t.Fatalf("Wrap(EPERM, attaching=true) = %q, want it to mention ESRCH", got)
	}
}

func TestWrapEPERMOutsideAttachIsFatal(t *testing.T) {
	err := Wrap("tgkill", 42, syscall.EPERM, false)
	if errors.Is(err, ErrThreadGone) {
		t.Fatalf("Wrap(EPERM, attaching=false) = %v, should not unwrap to ErrThreadGone", err)
	}
}

func TestWrapNilIsNil(t *testing.T) {
	if err := Wrap("op", 1, nil, false); err != nil {
		t.Fatalf("Wrap(nil) = %v, want nil", err)
	}
}
