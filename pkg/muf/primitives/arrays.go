package primitives

import (
	"strconv"
	"strings"

	"github.com/crystal-mush/gomuck/pkg/muf"
)

func registerArrays(b *muf.RegistryBuilder) {
	b.Register("ARRAY_MAKE", primArrayMake)
	b.Register("ARRAY_MAKE_DICT", primArrayMakeDict)
	b.Register("ARRAY_COUNT", primArrayCount)
	b.Register("ARRAY_GETITEM", primArrayGetItem)
	b.Register("ARRAY_SETITEM", primArraySetItem)
	b.Register("ARRAY_APPENDITEM", primArrayAppendItem)
	b.Register("ARRAY_DELITEM", primArrayDelItem)
	b.Register("ARRAY_KEYS", primArrayKeys)
	b.Register("ARRAY_VALS", primArrayVals)
	b.Register("ARRAY_EXPLODE", primArrayExplode)
	b.Register("ARRAY_JOIN", primArrayJoin)
	b.Register("ARRAY_REVERSE", primArrayReverse)
}

// keyText renders an Integer or String key; other kinds are not valid keys.
func keyText(d muf.Datum) (string, bool) {
	switch d.Type {
	case muf.TypeInteger:
		return strconv.FormatInt(d.Int, 10), true
	case muf.TypeString:
		return d.Str, true
	}
	return "", false
}

// findItem locates key in items. Keyed entries match by key text; an
// Integer key otherwise addresses items by 0-based position.
func findItem(items []muf.ArrayItem, key muf.Datum) int {
	text, _ := keyText(key)
	for i, it := range items {
		if it.Keyed && it.Key == text {
			return i
		}
	}
	if key.Type == muf.TypeInteger && key.Int >= 0 && key.Int < int64(len(items)) && !items[key.Int].Keyed {
		return int(key.Int)
	}
	return -1
}

func cloneItems(items []muf.ArrayItem) []muf.ArrayItem {
	out := make([]muf.ArrayItem, len(items))
	copy(out, items)
	return out
}

// ( x1..xn n -- a )
func primArrayMake(p *muf.Params) muf.Result {
	n, r := countArg(p)
	if !r.Successful() {
		return r
	}
	if r := needAfterCount(p, n); !r.Successful() {
		return r
	}
	p.Stack.Pop()
	p.Stack.Push(muf.ListDatum(p.Stack.PopN(n)...))
	return muf.Success()
}

// ( k1 v1..kn vn n -- d )
func primArrayMakeDict(p *muf.Params) muf.Result {
	n, r := countArg(p)
	if !r.Successful() {
		return r
	}
	if n > (p.Stack.Len()-1)/2 {
		return underflow(p, 2*int64(n))
	}
	for i := 0; i < n; i++ {
		k := p.Stack.Peek(2*n - 2*i + 1)
		if _, valid := keyText(k); !valid {
			return fail(muf.TypeMismatch, "ARRAY_MAKE_DICT: key %d is %s", i+1, k.Type)
		}
	}
	p.Stack.Pop()
	flat := p.Stack.PopN(2 * n)
	var items []muf.ArrayItem
	for i := 0; i < len(flat); i += 2 {
		key, _ := keyText(flat[i])
		item := muf.ArrayItem{Key: key, Keyed: true, Value: flat[i+1]}
		if j := findItem(items, flat[i]); j >= 0 {
			items[j] = item
		} else {
			items = append(items, item)
		}
	}
	p.Stack.Push(muf.ArrayDatum(items))
	return muf.Success()
}

// ( a -- i )
func primArrayCount(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeArray); !r.Successful() {
		return r
	}
	p.Stack.Set(1, muf.IntDatum(int64(len(p.Stack.Peek(1).Items))))
	return muf.Success()
}

func expectKey(p *muf.Params, depth int) muf.Result {
	k := p.Stack.Peek(depth)
	if _, valid := keyText(k); !valid {
		return fail(muf.TypeMismatch, "%s: key must be integer or string, got %s", p.Name, k.Type)
	}
	return muf.Success()
}

// ( a key -- x ) a missing key yields 0.
func primArrayGetItem(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeArray, muf.TypeAny); !r.Successful() {
		return r
	}
	if r := expectKey(p, 1); !r.Successful() {
		return r
	}
	xs := p.Stack.PopN(2)
	if i := findItem(xs[0].Items, xs[1]); i >= 0 {
		p.Stack.Push(xs[0].Items[i].Value)
	} else {
		p.Stack.Push(muf.IntDatum(0))
	}
	return muf.Success()
}

// ( x a key -- a' ) an Integer key equal to the length appends.
func primArraySetItem(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeAny, muf.TypeArray, muf.TypeAny); !r.Successful() {
		return r
	}
	if r := expectKey(p, 1); !r.Successful() {
		return r
	}
	arr, key := p.Stack.Peek(2), p.Stack.Peek(1)
	items := cloneItems(arr.Items)
	i := findItem(items, key)
	switch {
	case i >= 0:
	case key.Type == muf.TypeInteger && key.Int == int64(len(items)):
		items = append(items, muf.ArrayItem{})
		i = len(items) - 1
	case key.Type == muf.TypeString:
		items = append(items, muf.ArrayItem{Key: key.Str, Keyed: true})
		i = len(items) - 1
	default:
		return fail(muf.InvalidValue, "ARRAY_SETITEM: index %d out of range", key.Int)
	}
	xs := p.Stack.PopN(3)
	items[i].Value = xs[0]
	p.Stack.Push(muf.ArrayDatum(items))
	return muf.Success()
}

// ( x a -- a' )
func primArrayAppendItem(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeAny, muf.TypeArray); !r.Successful() {
		return r
	}
	xs := p.Stack.PopN(2)
	items := append(cloneItems(xs[1].Items), muf.ArrayItem{Value: xs[0]})
	p.Stack.Push(muf.ArrayDatum(items))
	return muf.Success()
}

// ( a key -- a' ) deleting a missing key is a no-op.
func primArrayDelItem(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeArray, muf.TypeAny); !r.Successful() {
		return r
	}
	if r := expectKey(p, 1); !r.Successful() {
		return r
	}
	xs := p.Stack.PopN(2)
	items := cloneItems(xs[0].Items)
	if i := findItem(items, xs[1]); i >= 0 {
		items = append(items[:i], items[i+1:]...)
	}
	p.Stack.Push(muf.ArrayDatum(items))
	return muf.Success()
}

func itemKey(it muf.ArrayItem, pos int) muf.Datum {
	if it.Keyed {
		return muf.StringDatum(it.Key)
	}
	return muf.IntDatum(int64(pos))
}

// ( a -- k1..kn n )
func primArrayKeys(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeArray); !r.Successful() {
		return r
	}
	a := p.Stack.Pop()
	for i, it := range a.Items {
		p.Stack.Push(itemKey(it, i))
	}
	p.Stack.Push(muf.IntDatum(int64(len(a.Items))))
	return muf.Success()
}

// ( a -- v1..vn n )
func primArrayVals(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeArray); !r.Successful() {
		return r
	}
	a := p.Stack.Pop()
	for _, it := range a.Items {
		p.Stack.Push(it.Value)
	}
	p.Stack.Push(muf.IntDatum(int64(len(a.Items))))
	return muf.Success()
}

// ( a -- k1 v1..kn vn n )
func primArrayExplode(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeArray); !r.Successful() {
		return r
	}
	a := p.Stack.Pop()
	for i, it := range a.Items {
		p.Stack.Push(itemKey(it, i), it.Value)
	}
	p.Stack.Push(muf.IntDatum(int64(len(a.Items))))
	return muf.Success()
}

// ( a sep -- s )
func primArrayJoin(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeArray, muf.TypeString); !r.Successful() {
		return r
	}
	xs := p.Stack.PopN(2)
	parts := make([]string, len(xs[0].Items))
	for i, it := range xs[0].Items {
		parts[i] = it.Value.Text()
	}
	p.Stack.Push(muf.StringDatum(strings.Join(parts, xs[1].Str)))
	return muf.Success()
}

// ( a -- a' )
func primArrayReverse(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeArray); !r.Successful() {
		return r
	}
	items := cloneItems(p.Stack.Peek(1).Items)
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	p.Stack.Set(1, muf.ArrayDatum(items))
	return muf.Success()
}
