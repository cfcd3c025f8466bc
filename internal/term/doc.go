// Package term draws a scan board on a terminal and turns terminal input
// into raw access events.
//
// Targets are laid out as a grid of boxes in declaration order. The Board
// tints each box with the active cue style: overlay cues paint the whole
// box, fill cues grow from one edge with the cue's progress and circle cues
// grow from the centre. Input maps mouse motion to over and out events on
// box elements, the left button to down and up, and the space or enter key
// to a single external switch press.
package term
