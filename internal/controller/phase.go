// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.
package controller

type Phase int

const (
	Idle Phase = iota
	Preheating
	AwaitingDrop
	Roasting
	ShuttingDown
	Stopped
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "Idle"
	case Preheating:
		return "Preheating"
	case AwaitingDrop:
		return "AwaitingDrop"
	case Roasting:
		return "Roasting"
	case ShuttingDown:
		return "ShuttingDown"
	case Stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}
