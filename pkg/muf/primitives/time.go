package primitives

import (
	"time"

	"github.com/ncruces/go-strftime"

	"github.com/crystal-mush/gomuck/pkg/muf"
)

func registerTime(b *muf.RegistryBuilder) {
	b.Register("TIME", primTime)
	b.Register("DATE", primDate)
	b.Register("SYSTIME", primSysTime)
	b.Register("GMTOFFSET", primGMTOffset)
	b.Register("TIMESPLIT", primTimeSplit)
	b.Register("TIMEFMT", primTimeFmt)
}

// now is replaced in tests.
var now = time.Now

// ( -- s m h )
func primTime(p *muf.Params) muf.Result {
	t := now()
	p.Stack.Push(muf.IntDatum(int64(t.Second())), muf.IntDatum(int64(t.Minute())), muf.IntDatum(int64(t.Hour())))
	return muf.Success()
}

// ( -- d m y )
func primDate(p *muf.Params) muf.Result {
	t := now()
	p.Stack.Push(muf.IntDatum(int64(t.Day())), muf.IntDatum(int64(t.Month())), muf.IntDatum(int64(t.Year())))
	return muf.Success()
}

// ( -- i )
func primSysTime(p *muf.Params) muf.Result {
	p.Stack.Push(muf.IntDatum(now().Unix()))
	return muf.Success()
}

// ( -- i ) seconds east of UTC.
func primGMTOffset(p *muf.Params) muf.Result {
	_, off := now().Zone()
	p.Stack.Push(muf.IntDatum(int64(off)))
	return muf.Success()
}

// ( i -- s m h dy mn yr wd yd ) wd is 1 for Sunday, yd counts from 1.
func primTimeSplit(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeInteger); !r.Successful() {
		return r
	}
	t := time.Unix(p.Stack.Pop().Int, 0).In(now().Location())
	for _, n := range []int{t.Second(), t.Minute(), t.Hour(), t.Day(), int(t.Month()), t.Year(), int(t.Weekday()) + 1, t.YearDay()} {
		p.Stack.Push(muf.IntDatum(int64(n)))
	}
	return muf.Success()
}

// ( s i -- s ) strftime-style formatting.
func primTimeFmt(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeString, muf.TypeInteger); !r.Successful() {
		return r
	}
	xs := p.Stack.PopN(2)
	t := time.Unix(xs[1].Int, 0).In(now().Location())
	p.Stack.Push(muf.StringDatum(strftime.Format(xs[0].Str, t)))
	return muf.Success()
}
