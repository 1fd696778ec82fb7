package bidding

import (
	"testing"

	"github.com/plebiscito-net/plebiscito/internal/bidbook"
	"github.com/plebiscito-net/plebiscito/internal/domain"
	"github.com/plebiscito-net/plebiscito/internal/ledger"
)

func TestBidFGDClaimsWholeJobOnOneSlot(t *testing.T) {
	l, _ := ledger.New(domain.V100, 0, true)
	book := bidbook.New()
	msg := domain.JobMessage{
		JobID:  "job-fgd",
		NLayer: 2,
		NNCpu:  []float64{1, 1},
		NNGpu:  []float64{0.5, 0.5},
	}

	ok, err := BidFGD(0, msg, l, book)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("an idle node should win an uncontested FGD bid")
	}
	entry, _ := book.Snapshot("job-fgd")
	for i, a := range entry.AuctionID {
		if a != 0 {
			t.Errorf("AuctionID[%d] = %d, want 0 — FGD places the whole job", i, a)
		}
	}
}

func TestBidFGDRejectsWhenCPUInsufficient(t *testing.T) {
	l, _ := ledger.New(domain.T4, 0, true)
	book := bidbook.New()
	msg := domain.JobMessage{
		JobID:  "job-fgd",
		NLayer: 1,
		NNCpu:  []float64{l.InitialCPU + 1},
		NNGpu:  []float64{0.1},
	}
	ok, err := BidFGD(0, msg, l, book)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("BidFGD should refuse when total CPU demand exceeds availability")
	}
}

func TestBidFGDRejectsWhenNoSlotFits(t *testing.T) {
	l, _ := ledger.New(domain.T4, 0, true)
	for i := range l.IndividualGPU {
		l.IndividualGPU[i] = 0
	}
	book := bidbook.New()
	msg := domain.JobMessage{
		JobID:  "job-fgd",
		NLayer: 1,
		NNCpu:  []float64{1},
		NNGpu:  []float64{0.5},
	}
	ok, err := BidFGD(0, msg, l, book)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("BidFGD should refuse when no individual GPU slot has capacity")
	}
}
