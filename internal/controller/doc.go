// Package controller drains the command queue and drives the devices.
//
// A single consumer loop executes one command end to end before touching
// the next: validate, reserve the interlock envelope, publish the step to
// the hardware bus, wait for the device acknowledgment, repeat per step,
// then write the terminal status back to the queue. Pending emergency
// stops bypass the FIFO order, and an estop arriving on the bus preempts
// whatever step the loop is waiting on.
//
// The loop is a plain state machine: AwaitingCommand, Validating,
// InterlockCheck, Dispatching, AwaitingDeviceAck, then Complete or Error
// and back to AwaitingCommand.
package controller
