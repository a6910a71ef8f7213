package mapconfig

import (
	"testing"

	"github.com/paulmach/orb"
)

func ptr[T any](v T) *T { return &v }

func TestNormalizeDefaults(t *testing.T) {
	for _, raw := range []*MapConfig{nil, {}} {
		n := Normalize(raw)
		if n != Defaults() {
			t.Errorf("Normalize(%v) = %+v, want defaults", raw, n)
		}
	}

	d := Defaults()
	if d.PMBasemapStyle != "contrast" {
		t.Errorf("PMBasemapStyle = %q, want %q", d.PMBasemapStyle, "contrast")
	}
	if d.MapProjection != "mercator" {
		t.Errorf("MapProjection = %q, want %q", d.MapProjection, "mercator")
	}
	if d.UseLocalServer || d.Mapbox3DEnabled {
		t.Error("local server and 3D should default to off")
	}
	if d.MaxBounds != nil {
		t.Error("MaxBounds should default to nil")
	}
}

func TestNormalizeSanitizesStrings(t *testing.T) {
	tests := []struct {
		name string
		raw  MapConfig
		want func(Normalized) (string, string)
	}{
		{
			name: "blank token is absent",
			raw:  MapConfig{MapboxAccessToken: ptr("   ")},
			want: func(n Normalized) (string, string) { return n.MapboxAccessToken, "" },
		},
		{
			name: "token trimmed",
			raw:  MapConfig{MapboxAccessToken: ptr("  pk.abc \n")},
			want: func(n Normalized) (string, string) { return n.MapboxAccessToken, "pk.abc" },
		},
		{
			name: "empty style url is absent",
			raw:  MapConfig{MapboxStyleURL: ptr("")},
			want: func(n Normalized) (string, string) { return n.MapboxStyleURL, "" },
		},
		{
			name: "style trimmed",
			raw:  MapConfig{MapboxStyle: ptr("\tmapbox://styles/a/b ")},
			want: func(n Normalized) (string, string) { return n.MapboxStyle, "mapbox://styles/a/b" },
		},
		{
			name: "blank style token is absent",
			raw:  MapConfig{MapboxStyleAccessToken: ptr(" ")},
			want: func(n Normalized) (string, string) { return n.MapboxStyleAccessToken, "" },
		},
		{
			name: "blank projection overrides default",
			raw:  MapConfig{MapProjection: ptr("  ")},
			want: func(n Normalized) (string, string) { return n.MapProjection, "" },
		},
		{
			name: "projection trimmed",
			raw:  MapConfig{MapProjection: ptr(" globe ")},
			want: func(n Normalized) (string, string) { return n.MapProjection, "globe" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, want := tt.want(Normalize(&tt.raw))
			if got != want {
				t.Errorf("got %q, want %q", got, want)
			}
		})
	}
}

func TestNormalizeMergesOverDefaults(t *testing.T) {
	raw := &MapConfig{
		UseLocalServer:  ptr(true),
		Mapbox3DEnabled: ptr(true),
		PMBasemapStyle:  ptr("dark"),
		Center:          &orb.Point{-122.4, 37.8},
		Zoom:            ptr(9.5),
		MaxBounds:       &Bounds{{-123, 37}, {-122, 38}},
	}
	n := Normalize(raw)

	if !n.UseLocalServer || !n.Mapbox3DEnabled {
		t.Error("booleans not merged")
	}
	if n.PMBasemapStyle != "dark" {
		t.Errorf("PMBasemapStyle = %q, want dark", n.PMBasemapStyle)
	}
	if n.Center != (orb.Point{-122.4, 37.8}) {
		t.Errorf("Center = %v", n.Center)
	}
	if n.Zoom != 9.5 {
		t.Errorf("Zoom = %g, want 9.5", n.Zoom)
	}
	if n.MapProjection != "mercator" {
		t.Errorf("MapProjection = %q, want default", n.MapProjection)
	}

	raw.MaxBounds[0] = orb.Point{0, 0}
	if n.MaxBounds[0] != (orb.Point{-123, 37}) {
		t.Error("Normalize shares MaxBounds with the raw config")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		raw     MapConfig
		wantErr bool
	}{
		{"defaults", MapConfig{}, false},
		{"bad latitude", MapConfig{Center: &orb.Point{0, 95}}, true},
		{"bad longitude", MapConfig{Center: &orb.Point{-190, 0}}, true},
		{"bad zoom", MapConfig{Zoom: ptr(30.0)}, true},
		{"bad pitch", MapConfig{Pitch: ptr(-1.0)}, true},
		{"center inside bounds", MapConfig{Center: &orb.Point{10, 50}, MaxBounds: &Bounds{{5, 45}, {15, 55}}}, false},
		{"center outside bounds", MapConfig{Center: &orb.Point{0, 0}, MaxBounds: &Bounds{{5, 45}, {15, 55}}}, true},
		{"inverted latitudes", MapConfig{Center: &orb.Point{10, 50}, MaxBounds: &Bounds{{5, 55}, {15, 45}}}, true},
		{"antimeridian bounds", MapConfig{Center: &orb.Point{179, 0}, MaxBounds: &Bounds{{170, -10}, {-170, 10}}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Normalize(&tt.raw).Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
