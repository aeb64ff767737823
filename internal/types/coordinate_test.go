package types

import "testing"

func TestCoordinatePrefix(t *testing.T) {
	full := Coordinate{IntAtom(2014), IntAtom(1), IntAtom(1)}
	prefix := Coordinate{IntAtom(2014), IntAtom(1)}

	if !prefix.IsPrefixOf(full) {
		t.Fatal("expected prefix to match deeper coordinate")
	}
	if full.IsPrefixOf(prefix) {
		t.Fatal("a deeper coordinate must not be a prefix of a shallower one")
	}
}

func TestCoordinateKeyDistinguishesTypeAndLength(t *testing.T) {
	a := Coordinate{StringAtom("1")}
	b := Coordinate{IntAtom(1)}
	c := Coordinate{StringAtom("1"), StringAtom("2")}

	if a.Key() == b.Key() {
		t.Fatal("string atom and int atom with the same text must not collide")
	}
	if a.Key() == c.Key() {
		t.Fatal("coordinates of different length must not collide")
	}
}

func TestCoordinateEqual(t *testing.T) {
	a := Coordinate{StringAtom("EU"), StringAtom("BE")}
	b := Coordinate{StringAtom("EU"), StringAtom("BE")}
	if !a.Equal(b) {
		t.Fatal("expected equal coordinates to compare equal")
	}
}
