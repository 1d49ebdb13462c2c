package filesystem

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/afero"
)

// stickyFs refuses to remove a file until it has been asked failures times.
type stickyFs struct {
	afero.Fs
	failures int
	removes  int
}

func (s *stickyFs) Remove(name string) error {
	s.removes++
	if s.removes <= s.failures {
		return errors.New("resource busy")
	}
	return s.Fs.Remove(name)
}

func TestReaper(t *testing.T) {
	Convey("Given a Reaper", t, func() {
		mem := afero.NewMemMapFs()
		ctx := context.Background()

		Convey("Delete of a missing path is a successful no-op", func() {
			reaper := NewReaper(mem, nopLogger(), 3, 0)
			result := reaper.Delete(ctx, "/work/nothing.sql")

			So(result.Deleted, ShouldBeTrue)
			So(result.Attempts, ShouldEqual, 0)
			So(result.Err, ShouldBeNil)
		})

		Convey("Delete of a read-only file succeeds on the first attempt", func() {
			So(afero.WriteFile(mem, "/work/dump.sql", []byte("data"), 0444), ShouldBeNil)
			reaper := NewReaper(mem, nopLogger(), 3, 0)

			result := reaper.Delete(ctx, "/work/dump.sql")

			So(result.Deleted, ShouldBeTrue)
			So(result.Attempts, ShouldEqual, 1)
			exists, _ := afero.Exists(mem, "/work/dump.sql")
			So(exists, ShouldBeFalse)
		})

		Convey("Delete retries while the file is held", func() {
			So(afero.WriteFile(mem, "/work/dump.sql", []byte("data"), 0644), ShouldBeNil)
			fs := &stickyFs{Fs: mem, failures: 2}
			reaper := NewReaper(fs, nopLogger(), 3, time.Millisecond)

			result := reaper.Delete(ctx, "/work/dump.sql")

			So(result.Deleted, ShouldBeTrue)
			So(result.Attempts, ShouldEqual, 3)
			So(result.Err, ShouldBeNil)
		})

		Convey("Delete gives up after the bounded attempts", func() {
			So(afero.WriteFile(mem, "/work/dump.sql", []byte("data"), 0644), ShouldBeNil)
			fs := &stickyFs{Fs: mem, failures: 10}
			reaper := NewReaper(fs, nopLogger(), 2, time.Millisecond)

			result := reaper.Delete(ctx, "/work/dump.sql")

			So(result.Deleted, ShouldBeFalse)
			So(result.Attempts, ShouldEqual, 2)
			So(result.Err, ShouldNotBeNil)
			So(fs.removes, ShouldEqual, 2)
			exists, _ := afero.Exists(mem, "/work/dump.sql")
			So(exists, ShouldBeTrue)
		})

		Convey("Delete stops retrying when the context is cancelled", func() {
			So(afero.WriteFile(mem, "/work/dump.sql", []byte("data"), 0644), ShouldBeNil)
			fs := &stickyFs{Fs: mem, failures: 10}
			reaper := NewReaper(fs, nopLogger(), 5, time.Hour)

			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			result := reaper.Delete(cancelled, "/work/dump.sql")

			So(result.Deleted, ShouldBeFalse)
			So(result.Attempts, ShouldEqual, 1)
			So(errors.Is(result.Err, context.Canceled), ShouldBeTrue)
		})

		Convey("DeleteAll reports every non-empty path", func() {
			So(afero.WriteFile(mem, "/work/a.sql", []byte("a"), 0644), ShouldBeNil)
			So(afero.WriteFile(mem, "/work/a.sql.gz", []byte("b"), 0644), ShouldBeNil)
			reaper := NewReaper(mem, nopLogger(), 1, 0)

			results := reaper.DeleteAll(ctx, []string{"/work/a.sql", "", "/work/a.sql.gz", "/work/gone"})

			So(len(results), ShouldEqual, 3)
			for _, r := range results {
				So(r.Deleted, ShouldBeTrue)
			}
		})
	})
}
