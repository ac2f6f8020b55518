package mem

import "testing"

func TestSizeToOrder(t *testing.T) {
	specs := []struct {
		size     Size
		expOrder Order
	}{
		{1 * KB, Order(0)},
		{PageSize, Order(0)},
		{8 * KB, Order(1)},
		{2 * MB, Order(9)},
	}

	for specIndex, spec := range specs {
		if got := spec.size.Order(); got != spec.expOrder {
			t.Errorf("[spec %d] expected to get order %d; got %d", specIndex, spec.expOrder, got)
		}
	}
}

func TestSizeToPages(t *testing.T) {
	specs := []struct {
		size     Size
		expPages uint64
	}{
		{1023 * KB, 256},
		{1024 * KB, 256},
		{1 * Byte, 1},
	}

	for specIndex, spec := range specs {
		if got := spec.size.Pages(); got != spec.expPages {
			t.Errorf("[spec %d] expected Pages(%d bytes) to equal %d; got %d", specIndex, spec.size, spec.expPages, got)
		}
	}
}

func TestOrderNrPages(t *testing.T) {
	specs := []struct {
		order    Order
		expPages uint64
	}{
		{0, 1},
		{3, 8},
		{10, 1024},
	}

	for specIndex, spec := range specs {
		if got := spec.order.NrPages(); got != spec.expPages {
			t.Errorf("[spec %d] expected order %d to span %d pages; got %d", specIndex, spec.order, spec.expPages, got)
		}
	}
}
