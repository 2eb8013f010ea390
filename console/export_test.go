package console

var StatusFor = statusFor
