package geom

import "testing"

func TestBearingToForward(t *testing.T) {
	p := Point{X: 0, Y: 0}
	o := Point{X: 0, Y: 5}
	b := p.BearingTo(o)
	if d := b.Degrees(); abs(d) > 1e-9 {
		t.Fatalf("expected due-north bearing, got %v", d)
	}
}

func TestTranslateThenBearingToRoundTrip(t *testing.T) {
	start := Point{X: 1, Y: 2}
	heading := FromDegrees(60)
	end := start.Translate(heading, 3)
	got := start.BearingTo(end)
	if d := abs(got.Degrees() - heading.Degrees()); d > 1e-6 {
		t.Fatalf("expected bearing %v after translate, got %v", heading.Degrees(), got.Degrees())
	}
	if d := start.Distance(end); abs(d-3) > 1e-9 {
		t.Fatalf("expected distance 3, got %v", d)
	}
}

func TestRelativeBearingStraightAhead(t *testing.T) {
	pose := Pose{Position: Point{X: 0, Y: 0}, Heading: FromDegrees(90)}
	target := pose.Project(2)
	if d := pose.RelativeBearing(target).Degrees(); abs(d) > 1e-9 {
		t.Fatalf("expected projected point to be straight ahead, got relative bearing %v", d)
	}
}
