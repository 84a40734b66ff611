package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// fakeCatalog serves sizes[i] items on page i+1; item values are 0..N-1 in order.
type fakeCatalog struct {
	sizes  []int
	failOn map[int]error

	mu       sync.Mutex
	requests []int
}

func (f *fakeCatalog) FetchPage(ctx context.Context, number int) (Page[int], error) {
	f.mu.Lock()
	f.requests = append(f.requests, number)
	f.mu.Unlock()

	if err := f.failOn[number]; err != nil {
		return Page[int]{}, err
	}
	if number < 1 || number > len(f.sizes) {
		return Page[int]{}, fmt.Errorf("page %d out of range", number)
	}

	offset := 0
	for _, s := range f.sizes[:number-1] {
		offset += s
	}
	items := make([]int, f.sizes[number-1])
	for i := range items {
		items[i] = offset + i
	}

	page := Page[int]{Number: number, Items: items, TotalPages: len(f.sizes)}
	if number < len(f.sizes) {
		page.Next = fmt.Sprintf("https://example.test/api/character?page=%d", number+1)
	}
	return page, nil
}

func (f *fakeCatalog) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func assertSequence(t *testing.T, items []int, n int) {
	t.Helper()
	if len(items) != n {
		t.Fatalf("len(items) = %d, want %d", len(items), n)
	}
	for i, v := range items {
		if v != i {
			t.Fatalf("items[%d] = %d, want %d (order or duplication broken)", i, v, i)
		}
	}
}

func TestWalk_ThreePagesOfTwenty(t *testing.T) {
	catalog := &fakeCatalog{sizes: []int{20, 20, 20}}

	res := Walk[int](context.Background(), catalog, DefaultOptions())

	if !res.Complete {
		t.Fatalf("Complete = false, cause %v", res.Cause)
	}
	if res.Err() != nil {
		t.Errorf("Err() = %v, want nil", res.Err())
	}
	assertSequence(t, res.Items, 60)
	if res.Pages != 3 {
		t.Errorf("Pages = %d, want 3", res.Pages)
	}
	if catalog.requestCount() != 3 {
		t.Errorf("requests = %d, want exactly 3 (stop at null next)", catalog.requestCount())
	}
}

func TestWalk_ConcatenationOfPages(t *testing.T) {
	tests := []struct {
		name  string
		sizes []int
	}{
		{"single page", []int{7}},
		{"empty single page", []int{0}},
		{"uneven pages", []int{20, 20, 6}},
		{"empty page in the middle", []int{3, 0, 4}},
		{"many pages", []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := &fakeCatalog{sizes: tt.sizes}
			res := Walk[int](context.Background(), catalog, DefaultOptions())

			total := 0
			for _, s := range tt.sizes {
				total += s
			}
			if !res.Complete {
				t.Fatalf("Complete = false, cause %v", res.Cause)
			}
			assertSequence(t, res.Items, total)
			if catalog.requestCount() != len(tt.sizes) {
				t.Errorf("requests = %d, want %d", catalog.requestCount(), len(tt.sizes))
			}
		})
	}
}

func TestWalk_FailureYieldsPartial(t *testing.T) {
	boom := errors.New("upstream 500")
	catalog := &fakeCatalog{sizes: []int{20, 20, 20, 20}, failOn: map[int]error{3: boom}}

	res := Walk[int](context.Background(), catalog, DefaultOptions())

	if res.Complete {
		t.Fatal("Complete = true, want partial")
	}
	assertSequence(t, res.Items, 40)
	if !errors.Is(res.Cause, boom) {
		t.Errorf("Cause = %v, want wrapping %v", res.Cause, boom)
	}

	var partial *PartialError
	if err := res.Err(); !errors.As(err, &partial) {
		t.Fatalf("Err() = %v, want *PartialError", err)
	}
	if partial.Pages != 2 || partial.Items != 40 {
		t.Errorf("PartialError = %+v", partial)
	}
	if !errors.Is(res.Err(), boom) {
		t.Error("PartialError should unwrap to the cause")
	}
	if catalog.requestCount() != 3 {
		t.Errorf("requests = %d, want 3 (no retry, no further pages)", catalog.requestCount())
	}
}

func TestWalk_FirstPageFailure(t *testing.T) {
	catalog := &fakeCatalog{sizes: []int{20}, failOn: map[int]error{1: errors.New("network down")}}

	res := Walk[int](context.Background(), catalog, DefaultOptions())

	if res.Complete || len(res.Items) != 0 || res.Pages != 0 {
		t.Errorf("res = %+v, want empty partial", res)
	}
}

func TestWalk_MaxItems(t *testing.T) {
	catalog := &fakeCatalog{sizes: []int{20, 20, 20, 20, 20, 20, 20, 20, 20, 20}}

	res := Walk[int](context.Background(), catalog, Options{MaxItems: 51})

	if !res.Complete {
		t.Fatalf("Complete = false, cause %v", res.Cause)
	}
	assertSequence(t, res.Items, 51)
	if catalog.requestCount() != 3 {
		t.Errorf("requests = %d, want 3", catalog.requestCount())
	}
}

func TestWalk_RunawayCursor(t *testing.T) {
	endless := FetcherFunc[int](func(ctx context.Context, number int) (Page[int], error) {
		return Page[int]{Number: number, Items: []int{number}, Next: "more"}, nil
	})

	res := Walk[int](context.Background(), endless, Options{MaxPages: 5})

	if res.Complete {
		t.Fatal("Complete = true, want partial")
	}
	if !errors.Is(res.Cause, ErrTooManyPages) {
		t.Errorf("Cause = %v, want ErrTooManyPages", res.Cause)
	}
	if len(res.Items) != 5 {
		t.Errorf("len(items) = %d, want 5", len(res.Items))
	}
}

func TestWalk_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	catalog := &fakeCatalog{sizes: []int{20, 20}}
	res := Walk[int](ctx, catalog, DefaultOptions())

	if res.Complete {
		t.Fatal("Complete = true, want partial")
	}
	if !errors.Is(res.Cause, context.Canceled) {
		t.Errorf("Cause = %v, want context.Canceled", res.Cause)
	}
	if catalog.requestCount() != 0 {
		t.Errorf("requests = %d, want 0", catalog.requestCount())
	}
}
