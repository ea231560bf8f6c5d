package grid

import "testing"

func TestDescriptorID(t *testing.T) {
	tests := []struct {
		name string
		d    Descriptor
		want string
	}{
		{
			name: "regular grid with fixed nx",
			d: Descriptor{
				Family:    RegularLL,
				LonFirst:  0,
				LonLast:   359.5,
				Nx:        720,
				Ny:        361,
				NumValues: 259920,
			},
			want: "0$359.5$720$361$259920$regular_ll",
		},
		{
			name: "reduced grid has missing nx",
			d: Descriptor{
				Family:    ReducedGG,
				LonFirst:  0,
				LonLast:   359.9,
				Nx:        MissingNx,
				Ny:        1280,
				NumValues: 6599680,
			},
			want: "0$359.9$M$1280$6599680$reduced_gg",
		},
		{
			name: "longitude trailing zeros are stripped",
			d: Descriptor{
				Family:    RegularLL,
				LonFirst:  10.2500,
				LonLast:   20.0000,
				Nx:        4,
				Ny:        4,
				NumValues: 16,
			},
			want: "10.25$20$4$4$16$regular_ll",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.d.ID(); got != tc.want {
				t.Errorf("ID() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDescriptorIDStable(t *testing.T) {
	d1 := Descriptor{Family: RotatedLL, LonFirst: 1, LonLast: 2, Nx: 4, Ny: 4, NumValues: 16, SouthPoleLat: -35, SouthPoleLon: -15}
	d2 := Descriptor{Family: RotatedLL, LonFirst: 1, LonLast: 2, Nx: 4, Ny: 4, NumValues: 16, SouthPoleLat: -40, SouthPoleLon: 10}

	if d1.ID() != d2.ID() {
		t.Errorf("expected grid_id to omit pole/rotation: %q != %q", d1.ID(), d2.ID())
	}
}

func TestRotatedAndReduced(t *testing.T) {
	if !(Descriptor{Family: RotatedGG}).Rotated() {
		t.Errorf("expected rotated_gg to be Rotated()")
	}
	if (Descriptor{Family: RegularGG}).Rotated() {
		t.Errorf("did not expect regular_gg to be Rotated()")
	}
	if !(Descriptor{Family: ReducedLL}).Reduced() {
		t.Errorf("expected reduced_ll to be Reduced()")
	}
}
